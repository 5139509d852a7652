package chainmap

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by every operation that addresses a frame by
// explicit index when that frame does not exist.
var ErrIndexOutOfRange = errors.New("chainmap: index out of range")

// IndexError records the operation and bounds that produced an
// ErrIndexOutOfRange failure.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("chainmap: %s index=%d len=%d: index out of range", e.Op, e.Index, e.Len)
}

// Unwrap exposes ErrIndexOutOfRange so callers can use errors.Is.
func (e *IndexError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrIndexOutOfRange
}

func indexError(op string, index, length int) error {
	return &IndexError{Op: op, Index: index, Len: length}
}
