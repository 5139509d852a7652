// Package env builds interpreter and configuration environments on top of a
// persistent scope chain.
//
// An Environment pairs a chainmap.PersistentMap[string, any] with a label per
// frame. Enter and Leave push and pop frames, Define binds in the current
// frame, Assign writes through to whichever frame provides a name, and Fork
// branches the whole environment in O(1), which makes closures and
// speculative evaluation cheap:
//
//	root := env.New(env.WithGlobals(map[string]any{"limit": 10}))
//	_ = root.Enter(layering.Label{Kind: layering.KindFunction, Name: "main"})
//	root.Define("limit", 3)
//	closure := root.Fork()
//	ok, _ := root.Evaluate("limit < 5") // true
//
// Checkpoint and Restore persist the O(1) State through a state.Store and
// emit activity events when hooks are configured.
package env
