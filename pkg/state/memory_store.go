package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store keyed by Ref.Identifier(). Snapshots are
// kept as given, so T should be a value type or immutable.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
	now     func() time.Time
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	now func() time.Time
}

// WithClock overrides the time source used for Meta.UpdatedAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(cfg *memoryConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore[T any](opts ...MemoryOption) *MemoryStore[T] {
	cfg := memoryConfig{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &MemoryStore[T]{
		records: map[string]memoryRecord[T]{},
		now:     cfg.now,
	}
}

// Load implements Store.
func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return record.snapshot, cloneMeta(record.meta), true, nil
}

// Save implements Store. Every successful write gets a new SnapshotID and
// ETag; a caller-supplied SnapshotID is ignored.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	if meta.ETag != "" && (!exists || current.meta.ETag != meta.ETag) {
		return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.meta.ETag)
	}

	stored := cloneMeta(meta)
	stored.SnapshotID = uuid.NewString()
	stored.ETag = uuid.NewString()
	stored.UpdatedAt = s.now().UTC()
	s.records[key] = memoryRecord[T]{snapshot: snapshot, meta: stored}
	return cloneMeta(stored), nil
}

// Delete implements Store and reports whether a snapshot was removed.
func (s *MemoryStore[T]) Delete(_ context.Context, ref Ref) (bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
