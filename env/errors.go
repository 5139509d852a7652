package env

import "errors"

var (
	// ErrUnbound is returned when assigning to a name no frame binds.
	ErrUnbound = errors.New("env: unbound name")
	// ErrInvalidNesting is returned by Enter under WithStrictNesting.
	ErrInvalidNesting = errors.New("env: invalid scope nesting")
	// ErrNoCheckpoint is returned by Restore when the ref holds no snapshot.
	ErrNoCheckpoint = errors.New("env: checkpoint not found")
	// ErrNilEnvironment is returned when grafting a nil environment.
	ErrNilEnvironment = errors.New("env: environment is nil")
)
