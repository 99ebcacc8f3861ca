package storage

import (
	"fmt"

	"github.com/EagleChen/mapmutex"
)

// fileLocks serializes every read-modify-write on the same backend key across
// the whole process. TryLock retries with exponential backoff (max 50ms between
// attempts) before giving up.
var fileLocks = mapmutex.NewCustomizedMapMutex(400, 50000000, 10, 1.1, 0.2)

// acquire takes the lock for key and returns its release function
func acquire(key string) (func(), error) {
	if !fileLocks.TryLock(key) {
		return nil, fmt.Errorf("%w: lock %s not acquired", ErrConflict, key)
	}
	return func() { fileLocks.Unlock(key) }, nil
}
