package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
)

const (
	serviceName = "carpool"
	tokenKey    = "token"
)

// ErrNoToken is returned by Token when no session token is stored.
var ErrNoToken = errors.New("no stored session token")

// TokenStore persists the session token in a keyring. The zero value is
// not usable; create one with Open or NewTokenStore.
type TokenStore struct {
	ring keyring.Keyring
}

// NewTokenStore wraps an already opened keyring. Tests pass
// keyring.NewArrayKeyring here.
func NewTokenStore(ring keyring.Keyring) *TokenStore {
	return &TokenStore{ring: ring}
}

// Open opens the system keyring, falling back to an encrypted file under
// configDir/credentials when no OS backend is available.
func Open(configDir string) (*TokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("carpool-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewTokenStore(ring), nil
}

// Token returns the stored session token, or ErrNoToken.
func (s *TokenStore) Token() (string, error) {
	item, err := s.ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// SetToken stores token, replacing any previous one.
func (s *TokenStore) SetToken(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "Carpool session token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}
	return nil
}

// DeleteToken removes the stored token. Removing a token that is not
// there is not an error.
func (s *TokenStore) DeleteToken() error {
	err := s.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}
	return nil
}
