package env

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/immutable"

	chainmap "github.com/goliatone/go-chainmap"
	"github.com/goliatone/go-chainmap/layering"
	"github.com/goliatone/go-chainmap/pkg/activity"
	"github.com/goliatone/go-chainmap/pkg/state"
)

// State is the persisted form of an Environment. Chain and Labels are
// persistent structures, so a State costs O(1) to take and stays valid while
// the environment keeps changing.
type State struct {
	ID     string
	Chain  *chainmap.PersistentMap[string, any]
	Labels *immutable.List[layering.Label]
}

// Depth returns the number of frames captured.
func (s State) Depth() int {
	if s.Chain == nil {
		return 0
	}
	return s.Chain.Len()
}

// Capture returns the environment's current State.
func (e *Environment) Capture() State {
	return State{
		ID:     e.id,
		Chain:  e.chain.Clone(),
		Labels: e.labels,
	}
}

// FromState rebuilds an Environment from s with e's configuration.
func (e *Environment) FromState(s State) (*Environment, error) {
	if s.Chain == nil || s.Labels == nil || s.Chain.Len() == 0 {
		return nil, fmt.Errorf("env: state holds no frames")
	}
	if s.Chain.Len() != s.Labels.Len() {
		return nil, fmt.Errorf("env: state has %d frames but %d labels", s.Chain.Len(), s.Labels.Len())
	}
	restored := e.derive(s.Chain.Clone(), s.Labels)
	if s.ID != "" {
		restored.id = s.ID
	}
	return restored, nil
}

// Checkpoint saves the current State under ref unconditionally.
func (e *Environment) Checkpoint(ctx context.Context, store state.Store[State], ref state.Ref) (state.Meta, error) {
	return e.CheckpointIfMatch(ctx, store, ref, "")
}

// CheckpointIfMatch saves the current State under ref when the stored ETag
// equals etag. An empty etag saves unconditionally.
func (e *Environment) CheckpointIfMatch(ctx context.Context, store state.Store[State], ref state.Ref, etag string) (state.Meta, error) {
	if store == nil {
		return state.Meta{}, fmt.Errorf("env: checkpoint store is required")
	}
	snapshot := e.Capture()
	meta, err := store.Save(ctx, ref, snapshot, state.Meta{
		ETag:  etag,
		Extra: map[string]string{"leaf": e.Label().Identifier()},
	})
	if err != nil {
		return state.Meta{}, fmt.Errorf("env: checkpoint %s/%s: %w", ref.Domain, ref.Name, err)
	}

	e.cfg.logger.LogAttrs(ctx, slog.LevelDebug, "checkpoint saved",
		slog.String("env", e.id),
		slog.String("domain", ref.Domain),
		slog.String("name", ref.Name),
		slog.String("snapshot_id", meta.SnapshotID),
		slog.Int("depth", snapshot.Depth()),
	)
	e.emitCheckpoint(ctx, activity.BuildCheckpointSavedEvent, ref, meta, snapshot.Depth())
	return meta, nil
}

// Restore loads the State saved under ref into a new Environment with e's
// configuration. e itself is not modified.
func (e *Environment) Restore(ctx context.Context, store state.Store[State], ref state.Ref) (*Environment, state.Meta, error) {
	if store == nil {
		return nil, state.Meta{}, fmt.Errorf("env: checkpoint store is required")
	}
	snapshot, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return nil, state.Meta{}, fmt.Errorf("env: restore %s/%s: %w", ref.Domain, ref.Name, err)
	}
	if !ok {
		return nil, state.Meta{}, fmt.Errorf("%w: %s/%s", ErrNoCheckpoint, ref.Domain, ref.Name)
	}
	restored, err := e.FromState(snapshot)
	if err != nil {
		return nil, meta, err
	}
	restored.emitCheckpoint(ctx, activity.BuildCheckpointRestoredEvent, ref, meta, restored.Depth())
	return restored, meta, nil
}

func (e *Environment) emitCheckpoint(ctx context.Context, build func(activity.CheckpointEventInput) activity.Event, ref state.Ref, meta state.Meta, depth int) {
	if !e.emitter.Enabled() {
		return
	}
	id, _ := ref.Identifier()
	e.notify(ctx, build(activity.CheckpointEventInput{
		Actor:      e.cfg.actor,
		EnvID:      e.id,
		Ref:        id,
		SnapshotID: meta.SnapshotID,
		ETag:       meta.ETag,
		Depth:      depth,
	}))
}
