// Package session holds the per-login state a request needs: who the user
// is and which role view they act in. Sessions live in an explicit store
// and end on logout or expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/tackle-shop/internal/models"
)

type Session struct {
	Token      string      `json:"token"`
	UserID     int64       `json:"user_id"`
	Role       models.Role `json:"role"`
	StoreID    int64       `json:"store_id,omitempty"`
	SupplierID int64       `json:"supplier_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Store interface {
	Save(ctx context.Context, s *Session) error
	// Get returns models.ErrSessionNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type Manager struct {
	store Store
	users UserLookup
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, users UserLookup, ttl time.Duration) *Manager {
	return &Manager{store: store, users: users, ttl: ttl, now: time.Now}
}

// Login opens a session for an existing user. The role and scope are
// copied from the user record at login time. Suppliers must belong to a
// supplier; staff without a store see every store.
func (m *Manager) Login(ctx context.Context, userID int64) (*Session, error) {
	user, err := m.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Role.Valid() {
		return nil, fmt.Errorf("user %d has invalid role %q", user.ID, user.Role)
	}
	// A zero supplier id would scope order listings to nothing.
	if user.Role == models.RoleSupplier && user.SupplierID == 0 {
		return nil, fmt.Errorf("supplier %d has no supplier id: %w", user.ID, models.ErrForbidden)
	}

	now := m.now().UTC()
	s := &Session{
		Token:      uuid.NewString(),
		UserID:     user.ID,
		Role:       user.Role,
		StoreID:    user.StoreID,
		SupplierID: user.SupplierID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, models.ErrSessionNotFound
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, token)
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Logout(ctx context.Context, token string) error {
	return m.store.Delete(ctx, token)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}

// MemoryStore keeps sessions in process. Used when Redis is not configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s.Token == "" {
		return errors.New("session token is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok || s.Expired(m.now()) {
		return nil, models.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
