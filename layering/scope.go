package layering

import (
	"fmt"
	"strings"
)

// Kind classifies a frame in a scope chain. Kinds are ordered from the
// outermost (global) to the innermost (block).
type Kind int

const (
	// KindUnknown marks a frame without metadata so call sites can detect it.
	KindUnknown Kind = iota
	// KindGlobal is the root frame of an environment.
	KindGlobal
	// KindModule holds package or file level bindings.
	KindModule
	// KindFunction holds parameters and locals of a call.
	KindFunction
	// KindBlock holds bindings of a nested lexical block.
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	case KindBlock:
		return "block"
	default:
		return "unknown"
	}
}

// ParseKind converts a string representation into the corresponding Kind,
// ignoring case. Returns KindUnknown for unrecognised values.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "global":
		return KindGlobal
	case "module":
		return KindModule
	case "function":
		return KindFunction
	case "block":
		return KindBlock
	default:
		return KindUnknown
	}
}

// Label names a frame within a scope chain.
type Label struct {
	Kind Kind
	Name string // e.g. module path or function name; empty for anonymous blocks
}

// Global returns the label used for root frames.
func Global() Label {
	return Label{Kind: KindGlobal}
}

// ParseLabel is the inverse of Label.Identifier. A bare kind such as "block"
// yields an unnamed label.
func ParseLabel(value string) Label {
	kind, name, _ := strings.Cut(value, ":")
	return Label{Kind: ParseKind(kind), Name: name}
}

// Identifier returns a stable slug such as "function:main" or "global".
func (l Label) Identifier() string {
	if l.Name == "" {
		return l.Kind.String()
	}
	return fmt.Sprintf("%s:%s", l.Kind, l.Name)
}

func (l Label) String() string {
	return l.Identifier()
}

// Encloses reports whether a frame labelled l may directly contain a frame
// labelled inner: kinds never decrease toward the leaf, except that blocks
// and functions may nest inside each other freely.
func (l Label) Encloses(inner Label) bool {
	if l.Kind == KindUnknown || inner.Kind == KindUnknown {
		return false
	}
	if inner.Kind == KindGlobal {
		return false
	}
	if l.Kind >= KindFunction && inner.Kind >= KindFunction {
		return true
	}
	return inner.Kind >= l.Kind
}
