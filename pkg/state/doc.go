// Package state defines the persistence contract used to checkpoint scope
// environments, plus an in-memory Store.
//
// A Store only loads, saves and deletes one snapshot per Ref. It owns Meta:
// Save assigns a fresh SnapshotID and ETag on every write and rejects writes
// whose ETag no longer matches the stored one, so two forks of the same
// environment cannot silently overwrite each other's checkpoint.
//
// Deterministic keys:
//
//	Ref.Identifier() yields "<domain>/<name>", e.g. "repl/session-42".
package state
