// Package session owns the login state of the client: the bearer token,
// the user's profile and the notification session bound to them.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nhle/carpool-client/internal/api"
	"github.com/nhle/carpool-client/internal/credential"
	"github.com/nhle/carpool-client/internal/model"
	"github.com/nhle/carpool-client/internal/store"
)

// FallbackLoginMessage is shown when a failed login carries no server
// message.
const FallbackLoginMessage = "invalid email or password"

var errIncompleteLogin = errors.New("login response missing token or user")

// LoginError is returned by Login. Message is safe to show to the user.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Message
}

func (e *LoginError) Unwrap() error { return e.Err }

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	DeleteToken() error
}

// ProfileStore persists the user's profile between runs.
type ProfileStore interface {
	SaveProfile(ctx context.Context, u model.User) error
	GetProfile(ctx context.Context) (*model.User, error)
	DeleteProfile(ctx context.Context) error
}

// Notifications is started when a session begins and torn down when it
// ends.
type Notifications interface {
	Initialize(token string)
	Teardown()
}

// Manager coordinates login, logout and session restore.
type Manager struct {
	auth     Authenticator
	tokens   TokenStore
	profiles ProfileStore
	notes    Notifications
	log      zerolog.Logger

	mu      sync.Mutex
	token   string
	profile *model.User
}

// NewManager wires a Manager. log may be zerolog.Nop().
func NewManager(
	auth Authenticator,
	tokens TokenStore,
	profiles ProfileStore,
	notes Notifications,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		auth:     auth,
		tokens:   tokens,
		profiles: profiles,
		notes:    notes,
		log:      log,
	}
}

// Login authenticates against the backend. On success the token and
// profile are persisted and the notification session is started. On
// failure nothing is persisted and a *LoginError is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)

	resp, err := m.auth.Login(ctx, email, password)
	if err != nil {
		msg := api.ServerMessage(err)
		if msg == "" {
			msg = FallbackLoginMessage
		}
		m.log.Warn().Err(err).Str("email", email).Msg("login rejected")
		return nil, &LoginError{Message: msg, Err: err}
	}
	if resp == nil || resp.Token == "" || resp.User == nil {
		m.log.Error().Str("email", email).Msg("login response incomplete")
		return nil, &LoginError{Message: FallbackLoginMessage, Err: errIncompleteLogin}
	}

	if err := m.tokens.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("persisting session token: %w", err)
	}
	user := *resp.User
	if err := m.profiles.SaveProfile(ctx, user); err != nil {
		m.log.Warn().Err(err).Int64("user", user.ID).Msg("profile not persisted")
	}

	m.mu.Lock()
	previous := m.token
	m.token = resp.Token
	m.profile = &user
	m.mu.Unlock()

	if previous != "" {
		m.notes.Teardown()
	}
	m.notes.Initialize(resp.Token)

	m.log.Info().Int64("user", user.ID).Msg("logged in")
	return &user, nil
}

// BootstrapSession restores a session persisted by an earlier Login.
// It reports whether a session was restored.
func (m *Manager) BootstrapSession(ctx context.Context) (bool, error) {
	token, err := m.tokens.Token()
	if errors.Is(err, credential.ErrNoToken) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restoring session: %w", err)
	}

	profile, err := m.profiles.GetProfile(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoProfile) {
			m.log.Warn().Err(err).Msg("stored profile unreadable")
		}
		profile = nil
	}

	m.mu.Lock()
	if m.token != "" {
		m.mu.Unlock()
		return true, nil
	}
	m.token = token
	m.profile = profile
	m.mu.Unlock()

	m.notes.Initialize(token)
	m.log.Info().Msg("session restored")
	return true, nil
}

// Logout ends the session: the token is forgotten, the notification
// session is torn down and the profile is removed. Calling it without a
// session is harmless. Every step runs even if an earlier one fails; the
// failures are returned joined.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.profile = nil
	m.mu.Unlock()

	var errs []error
	if err := m.tokens.DeleteToken(); err != nil {
		m.log.Error().Err(err).Msg("removing stored token failed")
		errs = append(errs, err)
	}

	m.notes.Teardown()

	if err := m.profiles.DeleteProfile(ctx); err != nil {
		m.log.Error().Err(err).Msg("removing stored profile failed")
		errs = append(errs, err)
	}

	m.log.Info().Msg("logged out")
	return errors.Join(errs...)
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	return m.Token() != ""
}

// Token returns the current bearer token, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Profile returns the logged-in user's profile. A restored session whose
// profile was not cached reads it from the store.
func (m *Manager) Profile(ctx context.Context) (*model.User, error) {
	m.mu.Lock()
	token, profile := m.token, m.profile
	m.mu.Unlock()

	if token == "" {
		return nil, store.ErrNoProfile
	}
	if profile != nil {
		u := *profile
		return &u, nil
	}
	return m.profiles.GetProfile(ctx)
}
