// Package layering labels the frames of a scope chain and merges frame
// snapshots into a single resolved view.
package layering
