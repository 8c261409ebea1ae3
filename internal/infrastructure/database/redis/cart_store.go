package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/clubwear/storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

// CartStore keeps session carts as JSON under cart:session:<id>. Updates use
// WATCH/MULTI on the session key and retry with exponential backoff when another
// writer gets there first.
type CartStore struct {
	client  *redis.Client
	ttl     time.Duration
	retries int
	now     func() time.Time
}

// NewCartStore creates a redis backed cart.Store
func NewCartStore(client *redis.Client, ttl time.Duration, retries int) *CartStore {
	if retries < 1 {
		retries = 1
	}
	return &CartStore{
		client:  client,
		ttl:     ttl,
		retries: retries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the session cart, or an empty one when the key is missing
func (s *CartStore) Get(ctx context.Context, sessionID string) (*cart.SessionCart, error) {
	return s.read(ctx, s.client, sessionID)
}

// Update runs fn inside an optimistic transaction on the session key
func (s *CartStore) Update(ctx context.Context, sessionID string, fn func(*cart.SessionCart) error) (*cart.SessionCart, error) {
	key := sessionKey(sessionID)
	var saved *cart.SessionCart

	txf := func(tx *redis.Tx) error {
		sc, err := s.read(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			return err
		}

		sc.Touch(s.now(), s.ttl)
		data, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}

		// Only runs if the watched key is unchanged
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		saved = sc
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond

	result, err := backoff.Retry(ctx, func() (*cart.SessionCart, error) {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return saved, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(s.retries)))
	if errors.Is(err, redis.TxFailedErr) {
		return nil, cart.ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the session cart
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (s *CartStore) read(ctx context.Context, cmd redis.Cmdable, sessionID string) (*cart.SessionCart, error) {
	data, err := cmd.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.NewSessionCart(sessionID, s.now(), s.ttl), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	var sc cart.SessionCart
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if sc.State.Items == nil {
		sc.State.Items = []cart.Line{}
	}
	return &sc, nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}
