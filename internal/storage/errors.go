package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt matches every *CorruptError
	ErrCorrupt = errors.New("corrupt content")

	// ErrConflict is returned when the file lock could not be acquired in time.
	// The operation had no effect and may be retried.
	ErrConflict = errors.New("concurrent access conflict")

	// ErrTooLarge is returned when a blob exceeds the configured size limit
	ErrTooLarge = errors.New("blob exceeds size limit")
)

// IOError reports a failure of the underlying storage medium.
// It is never converted into an empty collection.
type IOError struct {
	Op   string // read, write, mkdir, rename, ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CorruptError reports a blob that exists but does not decode
type CorruptError struct {
	Path string
	Err  error // decoder error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("storage %s: corrupt content: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCorrupt) match
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }
