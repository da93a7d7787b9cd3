package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewTokenStore(keyring.NewArrayKeyring(nil))

	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("Token() on empty ring err = %v, want ErrNoToken", err)
	}

	if err := s.SetToken("abc"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := s.SetToken("def"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	got, err := s.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != "def" {
		t.Errorf("Token() = %q, want %q", got, "def")
	}
}

func TestDeleteTokenIsIdempotent(t *testing.T) {
	s := NewTokenStore(keyring.NewArrayKeyring([]keyring.Item{{Key: tokenKey, Data: []byte("abc")}}))

	if err := s.DeleteToken(); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if err := s.DeleteToken(); err != nil {
		t.Fatalf("second DeleteToken: %v", err)
	}
	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() after delete err = %v, want ErrNoToken", err)
	}
}

func TestEmptyStoredTokenCountsAsMissing(t *testing.T) {
	s := NewTokenStore(keyring.NewArrayKeyring([]keyring.Item{{Key: tokenKey}}))

	if _, err := s.Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() err = %v, want ErrNoToken", err)
	}
}
