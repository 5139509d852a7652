package activity

import (
	"strings"
	"time"
)

// Verbs emitted for environment lifecycle events.
const (
	VerbScopeEntered       = "scope.entered"
	VerbScopeLeft          = "scope.left"
	VerbScopeHoisted       = "scope.hoisted"
	VerbScopeGrafted       = "scope.grafted"
	VerbCheckpointSaved    = "checkpoint.saved"
	VerbCheckpointRestored = "checkpoint.restored"
)

// Object types attached to lifecycle events.
const (
	ObjectScope      = "scope"
	ObjectCheckpoint = "checkpoint"
)

// Actor carries identity fields shared by every event an environment emits.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

// ScopeEventInput describes a frame push, pop, split or append.
type ScopeEventInput struct {
	Actor
	EnvID      string
	Channel    string
	Label      string // frame label identifier, e.g. "function:main"
	Depth      int    // chain length after the operation
	Frames     int    // frames moved by hoist/graft
	Bindings   int    // bindings held by the affected frame
	Metadata   map[string]any
	OccurredAt time.Time
}

// CheckpointEventInput describes a checkpoint save or restore.
type CheckpointEventInput struct {
	Actor
	EnvID      string
	Channel    string
	Ref        string // storage identifier of the checkpoint
	SnapshotID string
	ETag       string
	Depth      int
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildScopeEnteredEvent constructs an event for a pushed frame.
func BuildScopeEnteredEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeEntered, input)
}

// BuildScopeLeftEvent constructs an event for a popped frame.
func BuildScopeLeftEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeLeft, input)
}

// BuildScopeHoistedEvent constructs an event for frames split off a chain.
func BuildScopeHoistedEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeHoisted, input)
}

// BuildScopeGraftedEvent constructs an event for frames appended to a chain.
func BuildScopeGraftedEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeGrafted, input)
}

// BuildCheckpointSavedEvent constructs an event for a stored checkpoint.
func BuildCheckpointSavedEvent(input CheckpointEventInput) Event {
	return buildCheckpointEvent(VerbCheckpointSaved, input)
}

// BuildCheckpointRestoredEvent constructs an event for a loaded checkpoint.
func BuildCheckpointRestoredEvent(input CheckpointEventInput) Event {
	return buildCheckpointEvent(VerbCheckpointRestored, input)
}

func buildScopeEvent(verb string, input ScopeEventInput) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	metadata["depth"] = input.Depth
	if input.Label != "" {
		metadata["label"] = input.Label
	}
	if input.Frames > 0 {
		metadata["frames"] = input.Frames
	}
	if input.Bindings > 0 {
		metadata["bindings"] = input.Bindings
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectScope,
		ObjectID:   objectID(input.EnvID, ObjectScope),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func buildCheckpointEvent(verb string, input CheckpointEventInput) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	metadata["depth"] = input.Depth
	if input.EnvID != "" {
		metadata["env_id"] = input.EnvID
	}
	if input.SnapshotID != "" {
		metadata["snapshot_id"] = input.SnapshotID
	}
	if input.ETag != "" {
		metadata["etag"] = input.ETag
	}

	id := strings.TrimSpace(input.Ref)
	if id == "" {
		id = strings.TrimSpace(input.SnapshotID)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectCheckpoint,
		ObjectID:   objectID(id, ObjectCheckpoint),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func objectID(id, fallback string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return fallback
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
