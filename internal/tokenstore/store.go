// Package tokenstore holds the current bearer token and remembers it across
// restarts when the user asked to stay signed in.
package tokenstore

import (
	"errors"
	"fmt"
	"sync"

	"pft/internal/log"
)

// Durable storage keys. Both are written and cleared together.
const (
	KeyAccessToken  = "access_token"
	KeyPersistLogin = "persist_login"

	persistMarker = "1"
)

// Durable is the persistent key/value backend that outlives the process.
type Durable interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Store is the process-wide token holder. Construct one per application.
type Store struct {
	mu      sync.Mutex
	durable Durable
	logger  *log.Logger
	token   string
	persist bool
}

func New(durable Durable, logger *log.Logger) *Store {
	if durable == nil {
		durable = NewMemory()
	}
	return &Store{
		durable: durable,
		logger:  log.OrNop(logger).WithComponent(log.ComponentTokenStore),
	}
}

// Set keeps token in memory. With persist it is also written to durable
// storage alongside the marker; without, any durable copy is forgotten.
func (s *Store) Set(token string, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.persist = persist

	if persist {
		if err := s.durable.Set(KeyAccessToken, token); err != nil {
			return fmt.Errorf("persist token: %w", err)
		}
		if err := s.durable.Set(KeyPersistLogin, persistMarker); err != nil {
			return fmt.Errorf("persist marker: %w", err)
		}
		return nil
	}
	return s.forgetDurable()
}

// Token returns the in-memory token, lazily loading the durable copy when the
// persist marker is present. ok is false when no token is known.
func (s *Store) Token() (token string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, true
	}
	if !s.markerSet() {
		return "", false
	}
	v, found, err := s.durable.Get(KeyAccessToken)
	if err != nil {
		s.logger.Warn("Failed to load persisted token", log.FieldError, err)
		return "", false
	}
	if !found || v == "" {
		return "", false
	}
	s.token = v
	return v, true
}

// Clear wipes the in-memory token, the durable copy and the marker.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.persist = false
	return s.forgetDurable()
}

// PersistFlag is true when this process stored a remembered token or a
// previous process left the durable marker behind.
func (s *Store) PersistFlag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist || s.markerSet()
}

func (s *Store) markerSet() bool {
	v, found, err := s.durable.Get(KeyPersistLogin)
	if err != nil {
		s.logger.Warn("Failed to read persist marker", log.FieldError, err)
		return false
	}
	return found && v == persistMarker
}

func (s *Store) forgetDurable() error {
	return errors.Join(
		s.durable.Delete(KeyAccessToken),
		s.durable.Delete(KeyPersistLogin),
	)
}
