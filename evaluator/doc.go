// Package evaluator runs expr, CEL and (with the js_eval build tag)
// JavaScript expressions against a scope chain.
//
// Engines do not copy the chain into a binding map. expr resolves only the
// identifiers a program references, CEL resolves names through an activation
// as the program reads them, and JavaScript runs inside a with statement over
// an object backed by the chain. In every engine a name resolves to the
// call-local Bindings first, then the chain from the leaf outward, then the
// builtins now, args, metadata and scope.
package evaluator
