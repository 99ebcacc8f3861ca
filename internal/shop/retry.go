package shop

import (
	"errors"

	"github.com/dreamware/shopstore/internal/storage"
	"go.uber.org/zap"
)

// conflictAttempts bounds how often a write that lost the file lock is tried
const conflictAttempts = 3

// retryOnConflict runs fn again while it fails with storage.ErrConflict.
// A conflicted operation had no effect, so running it again is safe.
func retryOnConflict(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= conflictAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
		zap.S().Warnw("Storage lock busy, retrying", "op", op, "attempt", attempt)
	}
	return err
}
