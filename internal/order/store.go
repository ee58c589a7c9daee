package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/order-financials/internal/resilience"
)

// Store persists drafts. Saving a draft replaces whatever was stored under its ID.
type Store interface {
	Get(ctx context.Context, id string) (*Draft, error)
	Save(ctx context.Context, d *Draft) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps drafts in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]*Draft
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]*Draft)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, d *Draft) error {
	if d == nil || d.ID == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drafts == nil {
		m.drafts = make(map[string]*Draft)
	}
	m.drafts[d.ID] = d.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	return nil
}

// RedisStore keeps drafts as JSON documents with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed store. A non-positive ttl keeps drafts forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "order:draft:", ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + strings.TrimSpace(id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Draft, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

func (s *RedisStore) Save(ctx context.Context, d *Draft) error {
	if d == nil || d.ID == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", d.ID, err)
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(d.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", d.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// BreakerStore fails fast with ErrUnavailable while the wrapped store keeps erroring.
// Missing drafts and bad input do not count as failures.
type BreakerStore struct {
	Store   Store
	Breaker *resilience.Breaker
}

func (s BreakerStore) Get(ctx context.Context, id string) (*Draft, error) {
	var d *Draft
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.Store.Get(ctx, id)
		return err
	})
	return d, err
}

func (s BreakerStore) Save(ctx context.Context, d *Draft) error {
	return s.do(ctx, func(ctx context.Context) error { return s.Store.Save(ctx, d) })
}

func (s BreakerStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, func(ctx context.Context) error { return s.Store.Delete(ctx, id) })
}

func (s BreakerStore) do(ctx context.Context, fn func(context.Context) error) error {
	if s.Breaker == nil {
		return fn(ctx)
	}
	err := s.Breaker.Do(ctx, fn, isStoreFailure)
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func isStoreFailure(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrInvalidInput) &&
		!errors.Is(err, context.Canceled)
}
