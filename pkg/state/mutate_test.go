package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-chainmap/pkg/state"
)

type session struct {
	Name  string
	Depth int
}

func (s session) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type failingStore struct {
	state.Store[session]
	loadErr error
	saves   int
}

func (s *failingStore) Load(ctx context.Context, ref state.Ref) (session, state.Meta, bool, error) {
	if s.loadErr != nil {
		return session{}, state.Meta{}, false, s.loadErr
	}
	return s.Store.Load(ctx, ref)
}

func (s *failingStore) Save(ctx context.Context, ref state.Ref, snapshot session, meta state.Meta) (state.Meta, error) {
	s.saves++
	return s.Store.Save(ctx, ref, snapshot, meta)
}

func TestMutateCreatesAndUpdates(t *testing.T) {
	store := state.NewMemoryStore[session]()
	ctx := context.Background()
	ref := state.Ref{Domain: "repl", Name: "s1"}

	created, meta, err := state.Mutate[session](ctx, store, ref, state.Meta{}, func(s *session) error {
		s.Name = "main"
		return nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "main" || meta.ETag == "" {
		t.Fatalf("unexpected create result %+v %+v", created, meta)
	}

	updated, next, err := state.Mutate[session](ctx, store, ref, state.Meta{ETag: meta.ETag}, func(s *session) error {
		s.Depth++
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Depth != 1 || updated.Name != "main" || next.ETag == meta.ETag {
		t.Fatalf("unexpected update result %+v %+v", updated, next)
	}

	if _, _, err := state.Mutate[session](ctx, store, ref, state.Meta{ETag: meta.ETag}, func(*session) error { return nil }); !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch for stale etag, got %v", err)
	}
}

func TestMutateValidationFailureDoesNotSave(t *testing.T) {
	store := &failingStore{Store: state.NewMemoryStore[session]()}
	ref := state.Ref{Domain: "repl", Name: "s1"}

	_, _, err := state.Mutate[session](context.Background(), store, ref, state.Meta{}, func(s *session) error {
		s.Depth = 3
		return nil
	})
	if err == nil || err.Error() != "name is required" {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save calls, got %d", store.saves)
	}
}

func TestMutateGuards(t *testing.T) {
	ctx := context.Background()
	ref := state.Ref{Domain: "repl", Name: "s1"}
	noop := func(*session) error { return nil }

	if _, _, err := state.Mutate[session](ctx, nil, ref, state.Meta{}, noop); err == nil {
		t.Fatalf("expected nil store to fail")
	}
	store := &failingStore{Store: state.NewMemoryStore[session]()}
	if _, _, err := state.Mutate[session](ctx, store, ref, state.Meta{}, nil); err == nil {
		t.Fatalf("expected nil mutator to fail")
	}
	if _, _, err := state.Mutate[session](ctx, store, state.Ref{}, state.Meta{}, noop); !errors.Is(err, state.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}

	boom := errors.New("boom")
	store.loadErr = boom
	if _, _, err := state.Mutate[session](ctx, store, ref, state.Meta{}, noop); !errors.Is(err, boom) {
		t.Fatalf("expected load error to surface, got %v", err)
	}

	store.loadErr = nil
	if _, _, err := state.Mutate[session](ctx, store, ref, state.Meta{}, func(*session) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error to surface, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no saves after failures, got %d", store.saves)
	}
}
