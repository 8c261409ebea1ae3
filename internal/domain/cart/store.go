package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clubwear/storefront/internal/domain/product"
)

// ErrConcurrentUpdate is returned when a store gives up on a contended session
var ErrConcurrentUpdate = errors.New("cart was modified concurrently")

// Store persists session carts. A missing or expired session reads as an
// empty cart. Update runs fn as one read-modify-write; an error from fn
// aborts the write and is returned unchanged.
type Store interface {
	Get(ctx context.Context, sessionID string) (*SessionCart, error)
	Update(ctx context.Context, sessionID string, fn func(*SessionCart) error) (*SessionCart, error)
	Delete(ctx context.Context, sessionID string) error
}

// Catalog resolves the live product behind a cart request
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
}

// MemoryStore keeps session carts in process memory
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]*SessionCart
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an empty store whose carts expire after ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		carts: make(map[string]*SessionCart),
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a copy of the session cart
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*SessionCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(sessionID).copy(), nil
}

// Update applies fn to a copy and stores it when fn succeeds
func (s *MemoryStore) Update(ctx context.Context, sessionID string, fn func(*SessionCart) error) (*SessionCart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := s.loadLocked(sessionID).copy()
	if err := fn(sc); err != nil {
		return nil, err
	}
	sc.Touch(s.now(), s.ttl)
	s.carts[sessionID] = sc
	return sc.copy(), nil
}

// Delete drops the session cart
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

func (s *MemoryStore) loadLocked(sessionID string) *SessionCart {
	now := s.now()
	sc, ok := s.carts[sessionID]
	if !ok || !now.Before(sc.ExpiresAt) {
		delete(s.carts, sessionID)
		return NewSessionCart(sessionID, now, s.ttl)
	}
	return sc
}

func (c *SessionCart) copy() *SessionCart {
	out := *c
	out.State = c.State.clone()
	return &out
}
