package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// credentialKey is the persisted-state key holding the opaque session token.
const credentialKey = "dashboard:session_token"

// KV is the persisted key/value store backing the credential.
type KV interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CredentialStore loads and clears the session credential, caching it for
// cheap bearer-token access on every request.
type CredentialStore struct {
	kv KV

	mu    sync.RWMutex
	token string
}

// NewCredentialStore creates a store over the given KV backend.
func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

// Load reads the credential from storage into the cache. An absent key
// returns an empty token without error.
func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	var token string
	found, err := s.kv.Get(ctx, credentialKey, &token)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if !found {
		return "", nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return token, nil
}

// Save stores a new credential.
func (s *CredentialStore) Save(ctx context.Context, token string) error {
	if err := s.kv.Set(ctx, credentialKey, token, 0); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear removes the credential from cache and storage.
func (s *CredentialStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	_ = s.kv.Delete(ctx, credentialKey)
}

// Token returns the cached credential, empty when logged out.
func (s *CredentialStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
