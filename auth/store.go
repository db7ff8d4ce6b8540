package auth

import (
	"context"
	"sync"
)

type TokenStore interface {
	Load(ctx context.Context) (TokenSet, bool, error)
	Save(ctx context.Context, tokens TokenSet) error
	Clear(ctx context.Context) error
}

// DeviceIDStore persists device identities per account email so a later
// login can replay the fingerprint and skip the two-factor challenge.
type DeviceIDStore interface {
	Load(ctx context.Context, email string) (string, bool, error)
	Save(ctx context.Context, email, deviceID string) error
	Clear(ctx context.Context, email string) error
}

type MemoryTokenStore struct {
	mu    sync.RWMutex
	valid bool
	token TokenSet
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(_ context.Context) (TokenSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.valid {
		return TokenSet{}, false, nil
	}

	return s.token.Clone(), true, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, tokens TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = tokens.Clone()
	s.valid = true

	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = TokenSet{}
	s.valid = false

	return nil
}

type MemoryDeviceIDStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryDeviceIDStore() *MemoryDeviceIDStore {
	return &MemoryDeviceIDStore{data: make(map[string]string)}
}

func (s *MemoryDeviceIDStore) Load(_ context.Context, email string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[email]
	if !ok {
		return "", false, nil
	}

	return v, true, nil
}

func (s *MemoryDeviceIDStore) Save(_ context.Context, email, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[email] = deviceID

	return nil
}

func (s *MemoryDeviceIDStore) Clear(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, email)

	return nil
}
