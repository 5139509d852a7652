// Package chainmap implements layered scope maps: ordered stacks of frames
// where lookups walk from the newest frame back to the oldest, so a binding in
// a later frame shadows the same key in an earlier one while writes can still
// target any frame by index.
//
// Map and Set own their frames exclusively and Clone copies every frame.
// PersistentMap and PersistentSet keep their frames in persistent structures
// from github.com/benbjohnson/immutable: Clone is O(1) and a later write only
// copies the nodes on the path to the changed binding, leaving every other
// frame shared with earlier clones. Both families answer queries identically
// for the same frame sequence.
//
// Chains always hold at least one frame. PopChild on a single-frame chain
// clears that frame instead of removing it. SplitOff can leave a side with
// zero frames; push or append to it before using it as a regular chain.
package chainmap
