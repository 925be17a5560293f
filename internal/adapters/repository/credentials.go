package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/aecr/internal/domain/model"
)

// CredentialStore resolves platform credentials and tracks connection state.
type CredentialStore interface {
	Get(ctx context.Context, userID string, platform model.Platform) (model.Credential, error)
	MarkError(ctx context.Context, userID string, platform model.Platform, cause string) error
	MarkSynced(ctx context.Context, userID string, platform model.Platform, at time.Time) error
	Connections(ctx context.Context, userID string) ([]model.Connection, error)
}

type connKey struct {
	user     string
	platform model.Platform
}

// MemoryCredentials is an in-process CredentialStore.
type MemoryCredentials struct {
	mu    sync.RWMutex
	creds map[connKey]model.Credential
	conns map[connKey]model.Connection
}

// NewMemoryCredentials creates an empty credential store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{
		creds: make(map[connKey]model.Credential),
		conns: make(map[connKey]model.Connection),
	}
}

// Connect stores a credential and an active connection for the user.
func (s *MemoryCredentials) Connect(conn model.Connection, cred model.Credential) error {
	if conn.UserID == "" || !conn.Platform.Valid() {
		return fmt.Errorf("%w: connection needs a user and a known platform", ErrInvalidRecord)
	}
	k := connKey{conn.UserID, conn.Platform}
	if conn.Status == "" {
		conn.Status = model.StatusActive
	}
	s.mu.Lock()
	s.creds[k] = cred
	s.conns[k] = conn
	s.mu.Unlock()
	return nil
}

// Get implements CredentialStore.
func (s *MemoryCredentials) Get(_ context.Context, userID string, platform model.Platform) (model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[connKey{userID, platform}]
	if !ok {
		return model.Credential{}, fmt.Errorf("credential %s/%s: %w", userID, platform, ErrNotFound)
	}
	return c, nil
}

// MarkError implements CredentialStore.
func (s *MemoryCredentials) MarkError(_ context.Context, userID string, platform model.Platform, cause string) error {
	return s.update(userID, platform, func(c *model.Connection) {
		c.Status = model.StatusError
		c.LastError = cause
	})
}

// MarkSynced implements CredentialStore. The status is left untouched so an
// auth failure recorded during the same run stays visible.
func (s *MemoryCredentials) MarkSynced(_ context.Context, userID string, platform model.Platform, at time.Time) error {
	return s.update(userID, platform, func(c *model.Connection) {
		c.LastSyncedAt = at.UTC()
	})
}

// Connections implements CredentialStore. Results are ordered by platform.
func (s *MemoryCredentials) Connections(_ context.Context, userID string) ([]model.Connection, error) {
	s.mu.RLock()
	out := make([]model.Connection, 0)
	for k, c := range s.conns {
		if k.user == userID {
			c.AccountIDs = append([]string(nil), c.AccountIDs...)
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

// Users lists every user with at least one connection.
func (s *MemoryCredentials) Users() []string {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for k := range s.conns {
		seen[k.user] = struct{}{}
	}
	s.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryCredentials) update(userID string, platform model.Platform, fn func(*model.Connection)) error {
	k := connKey{userID, platform}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[k]
	if !ok {
		return fmt.Errorf("connection %s/%s: %w", userID, platform, ErrNotFound)
	}
	fn(&c)
	s.conns[k] = c
	return nil
}
