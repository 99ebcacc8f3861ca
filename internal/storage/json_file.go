package storage

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// CorruptPolicy decides what happens when a blob exists but is not valid JSON
type CorruptPolicy string

const (
	// CorruptFail refuses to read or write the blob until an operator repairs it
	CorruptFail CorruptPolicy = "fail"
	// CorruptRecover sets the bad blob aside and starts over from the empty value
	CorruptRecover CorruptPolicy = "recover"
)

// ParseCorruptPolicy maps a config string to a policy, defaulting to CorruptFail
func ParseCorruptPolicy(s string) (CorruptPolicy, error) {
	switch CorruptPolicy(s) {
	case "", CorruptFail:
		return CorruptFail, nil
	case CorruptRecover:
		return CorruptRecover, nil
	default:
		return "", fmt.Errorf("unknown corrupt policy %q (want %q or %q)", s, CorruptFail, CorruptRecover)
	}
}

// Options tune a JSONFile
type Options struct {
	CorruptPolicy CorruptPolicy // zero value behaves as CorruptFail
	MaxBytes      int64         // 0 means unlimited
}

// JSONFile gives whole-blob access to a JSON value of type T stored in a Backend.
// Every Load and Update holds the backend's lock for its full duration, so an
// Update is atomic with respect to every other JSONFile on the same key.
type JSONFile[T any] struct {
	backend Backend
	empty   func() T
	opts    Options
}

// NewJSONFile wraps backend. empty produces the value used for a missing blob
// and is written out on first access.
func NewJSONFile[T any](backend Backend, empty func() T, opts Options) *JSONFile[T] {
	if opts.CorruptPolicy == "" {
		opts.CorruptPolicy = CorruptFail
	}
	return &JSONFile[T]{backend: backend, empty: empty, opts: opts}
}

// Key returns the lock key of the underlying backend
func (f *JSONFile[T]) Key() string { return f.backend.Key() }

// Load returns a snapshot of the stored value
func (f *JSONFile[T]) Load() (T, error) {
	release, err := acquire(f.backend.Key())
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()

	return f.read()
}

// Update runs fn on the stored value and writes the result back when fn
// reports a change. Nothing is written if fn returns an error.
func (f *JSONFile[T]) Update(fn func(v *T) (changed bool, err error)) error {
	release, err := acquire(f.backend.Key())
	if err != nil {
		return err
	}
	defer release()

	v, err := f.read()
	if err != nil {
		return err
	}
	changed, err := fn(&v)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return f.write(v)
}

// read must be called with the lock held
func (f *JSONFile[T]) read() (T, error) {
	data, err := f.backend.Read()
	if errors.Is(err, ErrNotExist) {
		v := f.empty()
		if err := f.write(v); err != nil {
			return v, err
		}
		return v, nil
	}
	if err != nil {
		var zero T
		return zero, err
	}
	if f.opts.MaxBytes > 0 && int64(len(data)) > f.opts.MaxBytes {
		var zero T
		return zero, fmt.Errorf("%s: %d bytes (limit %d): %w", f.backend.Key(), len(data), f.opts.MaxBytes, ErrTooLarge)
	}

	v := f.empty()
	if err := json.Unmarshal(data, &v); err != nil {
		return f.handleCorrupt(data, err)
	}
	return v, nil
}

func (f *JSONFile[T]) handleCorrupt(data []byte, decodeErr error) (T, error) {
	key := f.backend.Key()
	cerr := &CorruptError{Path: key, Err: decodeErr}

	if f.opts.CorruptPolicy != CorruptRecover {
		zap.S().Errorw("Refusing to use corrupt storage file; writes are blocked until it is repaired",
			"path", key,
			"bytes", len(data),
			"error", decodeErr)
		var zero T
		return zero, cerr
	}

	backup := ""
	if q, ok := f.backend.(quarantiner); ok {
		var err error
		backup, err = q.Quarantine(data)
		if err != nil {
			// Without a backup, starting over would lose the old content for good
			zap.S().Errorw("Failed to quarantine corrupt storage file", "path", key, "error", err)
			var zero T
			return zero, fmt.Errorf("%w (quarantine failed: %v)", cerr, err)
		}
	}
	zap.S().Warnw("Corrupt storage file replaced with empty value",
		"path", key,
		"backup", backup,
		"bytes", len(data),
		"error", decodeErr)

	v := f.empty()
	if err := f.write(v); err != nil {
		return v, err
	}
	return v, nil
}

// write must be called with the lock held
func (f *JSONFile[T]) write(v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.backend.Key(), err)
	}
	// A stored blob never exceeds MaxBytes
	if f.opts.MaxBytes > 0 && int64(len(data)) > f.opts.MaxBytes {
		return fmt.Errorf("%s: write of %d bytes (limit %d): %w", f.backend.Key(), len(data), f.opts.MaxBytes, ErrTooLarge)
	}
	return f.backend.Write(data)
}
