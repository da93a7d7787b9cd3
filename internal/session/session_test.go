package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog"

	"github.com/nhle/carpool-client/internal/api"
	"github.com/nhle/carpool-client/internal/credential"
	"github.com/nhle/carpool-client/internal/model"
	"github.com/nhle/carpool-client/internal/store"
	"github.com/nhle/carpool-client/tests/testutil"
)

type fakeAuth struct {
	resp *model.LoginResponse
	err  error
}

func (a *fakeAuth) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	return a.resp, a.err
}

type fakeNotes struct {
	mu          sync.Mutex
	initialized []string
	teardowns   int
}

func (n *fakeNotes) Initialize(token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initialized = append(n.initialized, token)
}

func (n *fakeNotes) Teardown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teardowns++
}

type fixture struct {
	mgr      *Manager
	auth     *fakeAuth
	notes    *fakeNotes
	tokens   *credential.TokenStore
	profiles *store.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:     &fakeAuth{},
		notes:    &fakeNotes{},
		tokens:   credential.NewTokenStore(keyring.NewArrayKeyring(nil)),
		profiles: testutil.NewTestStore(t),
	}
	f.mgr = NewManager(f.auth, f.tokens, f.profiles, f.notes, zerolog.Nop())
	return f
}

func ana() *model.User {
	return &model.User{ID: 7, Name: "Ana Souza", Email: "ana@example.com", Kind: "passageiro"}
}

func TestLoginPersistsAndStartsNotifications(t *testing.T) {
	f := newFixture(t)
	f.auth.resp = &model.LoginResponse{Token: "tok", User: ana()}
	ctx := context.Background()

	u, err := f.mgr.Login(ctx, " ana@example.com ", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.FirstName() != "Ana" {
		t.Errorf("FirstName() = %q, want Ana", u.FirstName())
	}
	if !f.mgr.IsAuthenticated() || f.mgr.Token() != "tok" {
		t.Errorf("Token() = %q, want tok", f.mgr.Token())
	}

	stored, err := f.tokens.Token()
	if err != nil || stored != "tok" {
		t.Errorf("stored token = %q, %v", stored, err)
	}
	p, err := f.profiles.GetProfile(ctx)
	if err != nil || p.ID != 7 {
		t.Errorf("stored profile = %+v, %v", p, err)
	}
	if len(f.notes.initialized) != 1 || f.notes.initialized[0] != "tok" {
		t.Errorf("Initialize calls = %v, want [tok]", f.notes.initialized)
	}
}

func TestLoginFailureCarriesServerMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "server message",
			err:  &api.APIError{StatusCode: http.StatusUnauthorized, Message: "Senha incorreta"},
			want: "Senha incorreta",
		},
		{
			name: "no message",
			err:  &api.APIError{StatusCode: http.StatusUnauthorized},
			want: FallbackLoginMessage,
		},
		{
			name: "network",
			err:  errors.New("connection refused"),
			want: FallbackLoginMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.err = tt.err

			_, err := f.mgr.Login(context.Background(), "ana@example.com", "bad")

			var loginErr *LoginError
			if !errors.As(err, &loginErr) {
				t.Fatalf("err = %v, want *LoginError", err)
			}
			if loginErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", loginErr.Message, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("LoginError must wrap the cause")
			}
			if f.mgr.IsAuthenticated() {
				t.Error("failed login must not authenticate")
			}
			if _, err := f.tokens.Token(); !errors.Is(err, credential.ErrNoToken) {
				t.Error("failed login must not persist a token")
			}
			if len(f.notes.initialized) != 0 {
				t.Error("failed login must not start notifications")
			}
		})
	}
}

func TestLoginWithIncompleteResponse(t *testing.T) {
	for _, resp := range []*model.LoginResponse{
		{Token: "tok"},
		{User: ana()},
		nil,
	} {
		f := newFixture(t)
		f.auth.resp = resp

		_, err := f.mgr.Login(context.Background(), "ana@example.com", "secret")
		var loginErr *LoginError
		if !errors.As(err, &loginErr) {
			t.Fatalf("err = %v, want *LoginError", err)
		}
		if f.mgr.IsAuthenticated() {
			t.Error("incomplete response must not authenticate")
		}
		if _, err := f.profiles.GetProfile(context.Background()); !errors.Is(err, store.ErrNoProfile) {
			t.Error("incomplete response must not persist a profile")
		}
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.auth.resp = &model.LoginResponse{Token: "tok", User: ana()}
	ctx := context.Background()

	if _, err := f.mgr.Login(ctx, "ana@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.mgr.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if f.mgr.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}
	if _, err := f.tokens.Token(); !errors.Is(err, credential.ErrNoToken) {
		t.Error("token survived logout")
	}
	if _, err := f.profiles.GetProfile(ctx); !errors.Is(err, store.ErrNoProfile) {
		t.Error("profile survived logout")
	}
	if _, err := f.mgr.Profile(ctx); !errors.Is(err, store.ErrNoProfile) {
		t.Error("Profile() must fail without a session")
	}
	if f.notes.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", f.notes.teardowns)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := f.mgr.Logout(context.Background()); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestBootstrapRestoresPersistedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.tokens.SetToken("saved"); err != nil {
		t.Fatal(err)
	}
	if err := f.profiles.SaveProfile(ctx, *ana()); err != nil {
		t.Fatal(err)
	}

	restored, err := f.mgr.BootstrapSession(ctx)
	if err != nil {
		t.Fatalf("BootstrapSession: %v", err)
	}
	if !restored || f.mgr.Token() != "saved" {
		t.Fatalf("restored = %v, token = %q", restored, f.mgr.Token())
	}
	p, err := f.mgr.Profile(ctx)
	if err != nil || p.Name != "Ana Souza" {
		t.Errorf("Profile() = %+v, %v", p, err)
	}
	if len(f.notes.initialized) != 1 || f.notes.initialized[0] != "saved" {
		t.Errorf("Initialize calls = %v, want [saved]", f.notes.initialized)
	}

	// A second bootstrap keeps the running session.
	if _, err := f.mgr.BootstrapSession(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.notes.initialized) != 1 {
		t.Errorf("Initialize calls = %d, want 1", len(f.notes.initialized))
	}
}

func TestBootstrapWithoutToken(t *testing.T) {
	f := newFixture(t)

	restored, err := f.mgr.BootstrapSession(context.Background())
	if err != nil {
		t.Fatalf("BootstrapSession: %v", err)
	}
	if restored || f.mgr.IsAuthenticated() {
		t.Error("nothing to restore, yet a session started")
	}
	if len(f.notes.initialized) != 0 {
		t.Error("Initialize must not run without a token")
	}
}

func TestReloginTearsDownPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.auth.resp = &model.LoginResponse{Token: "one", User: ana()}
	if _, err := f.mgr.Login(ctx, "ana@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	f.auth.resp = &model.LoginResponse{Token: "two", User: &model.User{ID: 8, Name: "Bia"}}
	if _, err := f.mgr.Login(ctx, "bia@example.com", "secret"); err != nil {
		t.Fatal(err)
	}

	if f.notes.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", f.notes.teardowns)
	}
	if got := f.notes.initialized; len(got) != 2 || got[1] != "two" {
		t.Errorf("Initialize calls = %v, want [one two]", got)
	}
	p, err := f.mgr.Profile(ctx)
	if err != nil || p.ID != 8 {
		t.Errorf("Profile() = %+v, %v", p, err)
	}
}
