package repositories

import (
	"context"
	"sync"
	"time"
)

type otpEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryOTPStore is an in-process implementation of OTPStore. Suitable for
// tests and single-instance deployments; state does not survive restarts.
type MemoryOTPStore struct {
	entries map[string]otpEntry
	mu      sync.RWMutex
}

// NewMemoryOTPStore creates a new instance of MemoryOTPStore.
func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		entries: make(map[string]otpEntry),
	}
}

// Set stores a code for an email, overwriting any previous one.
func (s *MemoryOTPStore) Set(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[email] = otpEntry{
		code:      code,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the live code for an email. Expired entries are removed lazily
// and reported as ErrOTPNotFound.
func (s *MemoryOTPStore) Get(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[email]
	if !ok {
		return "", ErrOTPNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, email)
		return "", ErrOTPNotFound
	}
	return entry.code, nil
}

// Delete removes the code for an email.
func (s *MemoryOTPStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, email)
	return nil
}
