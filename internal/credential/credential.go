// Package credential stores the session credential in the system keyring and refreshes it through OAuth2 when it expires.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
	"github.com/desertthunder/recap/internal/shared"
	"golang.org/x/oauth2"
)

const sessionKey = "session"

// Source yields the current session credential.
//
// A nil token with a nil error means nobody is signed in; callers treat that as "do nothing", not as a failure.
type Source interface {
	SessionCredential(ctx context.Context) (*oauth2.Token, error)
}

// StaticSource always returns the same token. Useful for RECAP_TOKEN and tests.
type StaticSource struct {
	Token *oauth2.Token
}

// SessionCredential implements [Source].
func (s StaticSource) SessionCredential(context.Context) (*oauth2.Token, error) {
	if s.Token == nil || s.Token.AccessToken == "" {
		return nil, nil
	}
	return s.Token, nil
}

// Store persists the session token in a [keyring.Keyring].
type Store struct {
	ring  keyring.Keyring
	oauth *oauth2.Config
	mu    sync.Mutex
}

// Open opens the keyring described by cfg. When cfg.TokenURL is set, expired tokens are refreshed against it.
func Open(cfg shared.CredentialsConfig) (*Store, error) {
	service := cfg.KeyringService
	if service == "" {
		service = "recap"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  shared.ExpandHome(cfg.KeyringDir),
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	var oauthCfg *oauth2.Config
	if cfg.TokenURL != "" {
		oauthCfg = &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{TokenURL: cfg.TokenURL},
		}
	}

	return NewStore(ring, oauthCfg), nil
}

// NewStore wraps an already opened keyring. oauthCfg may be nil to disable refresh.
func NewStore(ring keyring.Keyring, oauthCfg *oauth2.Config) *Store {
	return &Store{ring: ring, oauth: oauthCfg}
}

// Save stores tok as the session credential.
func (s *Store) Save(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrInvalidCredentials)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding session token: %w", err)
	}

	if err := s.ring.Set(keyring.Item{Key: sessionKey, Data: data, Label: "recap session"}); err != nil {
		return fmt.Errorf("setting credential %q: %w", sessionKey, err)
	}
	return nil
}

// Load returns the stored token, or nil when none is stored.
func (s *Store) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", sessionKey, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, fmt.Errorf("%w: stored session token is corrupt: %v", shared.ErrInvalidCredentials, err)
	}
	return &tok, nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	err := s.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", sessionKey, err)
	}
	return nil
}

// SessionCredential implements [Source]. Expired tokens are refreshed and written back when refresh is configured.
func (s *Store) SessionCredential(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.Load()
	if err != nil || tok == nil {
		return nil, err
	}
	if tok.Valid() {
		return tok, nil
	}

	if s.oauth == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: sign in again", shared.ErrTokenExpired)
	}

	refreshed, err := s.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if refreshed.AccessToken != tok.AccessToken {
		if err := s.Save(refreshed); err != nil {
			return nil, err
		}
	}
	return refreshed, nil
}
