package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	// ErrETagMismatch reports an optimistic concurrency conflict.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrInvalidRef reports a Ref that cannot produce a storage key.
	ErrInvalidRef = errors.New("state: invalid ref")
)

// Ref identifies one persisted snapshot.
type Ref struct {
	Domain string // e.g. "repl", "config"
	Name   string // e.g. a session or checkpoint name
}

// Identifier returns the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	name := strings.TrimSpace(r.Name)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidRef)
	}
	if name == "" {
		return "", fmt.Errorf("%w: name is required for domain %q", ErrInvalidRef, domain)
	}
	if strings.Contains(domain, "/") {
		return "", fmt.Errorf("%w: domain %q must not contain '/'", ErrInvalidRef, domain)
	}
	return domain + "/" + name, nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads, saves and deletes one snapshot for a single Ref.
//
// Save treats a non-empty meta.ETag as a precondition: the write fails with
// ErrETagMismatch unless it equals the stored ETag.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) (bool, error)
}

// Mutator edits a loaded snapshot in place.
type Mutator[T any] func(*T) error

type validator interface {
	Validate() error
}

// Mutate loads the snapshot at ref (the zero value when absent), applies fn,
// validates the result when it implements Validate() error, then saves it
// using the loaded ETag as precondition. A non-empty meta.ETag must match the
// stored one before fn runs.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, err
	}

	snapshot, loaded, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q/%q: %w", ref.Domain, ref.Name, err)
	}
	if !ok {
		snapshot = zero
		loaded = Meta{}
	}
	if meta.ETag != "" && meta.ETag != loaded.ETag {
		return zero, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loaded, err
	}
	if v, ok := any(snapshot).(validator); ok {
		if err := v.Validate(); err != nil {
			return zero, loaded, err
		}
	}

	save := mergeMeta(loaded, meta)
	save.ETag = loaded.ETag
	saved, err := store.Save(ctx, ref, snapshot, save)
	if err != nil {
		return zero, loaded, fmt.Errorf("state: save %q/%q: %w", ref.Domain, ref.Name, err)
	}
	return snapshot, saved, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = maps.Clone(meta.Extra)
	return out
}
