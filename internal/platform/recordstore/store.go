// Package recordstore persists whole named collections as single serialized
// blobs. A Backend moves raw bytes; Collection adds JSON encoding, typed
// deserialization errors and per-key locking on top of it.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

var (
	ErrKeyNotFound = errors.New("collection key not found")
	ErrInvalidKey  = errors.New("invalid collection key")
)

// DeserializationError reports that the bytes stored under a key could not be
// decoded into the expected collection shape.
type DeserializationError struct {
	Key string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize collection %q: %v", e.Key, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Backend is the durable byte store underneath every collection. Put must
// replace the stored value atomically: readers see either the old or the new
// blob, never a mix.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Ping(ctx context.Context) error
}

var keyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateKey checks that a collection key is usable by every backend
// (file names, primary keys).
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Store wraps a Backend and owns one mutex per collection key so that
// load-mutate-save sequences on the same key never interleave.
type Store struct {
	backend Backend

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(backend Backend) *Store {
	return &Store{backend: backend, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Collection is a typed view over one key of a Store.
type Collection[T any] struct {
	store *Store
	key   string
}

// NewCollection binds a typed collection to key. It panics on an invalid key
// since keys are compile-time constants in this codebase.
func NewCollection[T any](store *Store, key string) *Collection[T] {
	if err := ValidateKey(key); err != nil {
		panic(err)
	}
	return &Collection[T]{store: store, key: key}
}

func (c *Collection[T]) Key() string { return c.key }

// Load returns the stored collection. An absent key yields an empty slice;
// undecodable bytes yield a *DeserializationError.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	unlock := c.store.lock(c.key)
	defer unlock()
	return c.load(ctx)
}

// Save overwrites the whole collection.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	unlock := c.store.lock(c.key)
	defer unlock()
	return c.save(ctx, items)
}

// Read runs fn against the current collection while holding the key lock.
func (c *Collection[T]) Read(ctx context.Context, fn func(items []T) error) error {
	unlock := c.store.lock(c.key)
	defer unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	return fn(items)
}

// Mutate runs fn against the current collection while holding the key lock
// and persists whatever fn returns. If fn fails nothing is written.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	unlock := c.store.lock(c.key)
	defer unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	updated, err := fn(items)
	if err != nil {
		return err
	}
	return c.save(ctx, updated)
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	data, err := c.store.backend.Get(ctx, c.key)
	if errors.Is(err, ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %q: %w", c.key, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &DeserializationError{Key: c.key, Err: err}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", c.key, err)
	}
	if err := c.store.backend.Put(ctx, c.key, data); err != nil {
		return fmt.Errorf("save collection %q: %w", c.key, err)
	}
	return nil
}
