//go:build !js_eval

package evaluator

// NewJS is unavailable without the js_eval build tag and returns nil.
func NewJS(...Option) Evaluator {
	return nil
}

// JSAvailable reports whether the binary was built with the js_eval tag.
func JSAvailable() bool {
	return false
}
