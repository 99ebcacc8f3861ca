package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// ErrNotExist is returned by a Backend when the blob has never been written
var ErrNotExist = errors.New("blob does not exist")

// Backend holds exactly one blob (a whole collection or a whole session table).
// Implementations must be safe for concurrent use, but callers that need
// read-modify-write atomicity go through JSONFile, which holds the file lock.
type Backend interface {
	// Key identifies the underlying resource for locking.
	// Two backends with the same key share one lock.
	Key() string

	// Read returns the full blob
	// Returns ErrNotExist if it has never been written
	Read() ([]byte, error)

	// Write replaces the full blob
	Write(data []byte) error
}

// quarantiner is implemented by backends that can set aside an unreadable blob
// before it gets replaced.
type quarantiner interface {
	Quarantine(data []byte) (string, error)
}

// FileBackend stores the blob in one file on disk
type FileBackend struct {
	path string // absolute, cleaned path
}

// NewFileBackend returns a backend for path.
// The file and its directory are not touched until the first Read or Write.
func NewFileBackend(path string) (*FileBackend, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &IOError{Op: "resolve", Path: path, Err: err}
	}
	return &FileBackend{path: filepath.Clean(abs)}, nil
}

// Key returns the absolute path of the file
func (f *FileBackend) Key() string { return f.path }

// Path returns the absolute path of the file
func (f *FileBackend) Path() string { return f.path }

// Read loads the whole file.
// A missing file gets its parent directory created and reports ErrNotExist;
// any other failure is an *IOError.
func (f *FileBackend) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		dir := filepath.Dir(f.path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, &IOError{Op: "mkdir", Path: dir, Err: mkErr}
		}
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: f.path, Err: err}
	}
	return data, nil
}

// Write replaces the file atomically: temp file in the same directory, fsync, rename.
func (f *FileBackend) Write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: f.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return &IOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return &IOError{Op: "rename", Path: f.path, Err: err}
	}
	return nil
}

// Quarantine copies an unreadable file next to the original as
// <path>.corrupt-<unixnano> and returns the copy's path.
func (f *FileBackend) Quarantine(data []byte) (string, error) {
	dst := f.path + ".corrupt-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", &IOError{Op: "quarantine", Path: dst, Err: err}
	}
	return dst, nil
}

// MemoryBackend keeps the blob in memory.
// Used for tests and for running the service without a data directory.
type MemoryBackend struct {
	mu          sync.RWMutex // Protects concurrent access
	data        []byte       // Current blob
	exists      bool         // Whether the blob has been written
	quarantined [][]byte     // Blobs set aside by Quarantine
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// NewMemoryBackendWith creates an in-memory backend holding data
func NewMemoryBackendWith(data []byte) *MemoryBackend {
	m := &MemoryBackend{}
	_ = m.Write(data)
	return m
}

// Key is unique per backend instance
func (m *MemoryBackend) Key() string { return fmt.Sprintf("memory:%p", m) }

// Read returns a copy of the blob to prevent external modification
func (m *MemoryBackend) Read() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.exists {
		return nil, ErrNotExist
	}
	result := make([]byte, len(m.data))
	copy(result, m.data)
	return result, nil
}

// Write stores a copy of data
func (m *MemoryBackend) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.data = stored
	m.exists = true
	return nil
}

// Quarantine keeps a copy of data aside
func (m *MemoryBackend) Quarantine(data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]byte, len(data))
	copy(kept, data)
	m.quarantined = append(m.quarantined, kept)
	return fmt.Sprintf("%s#corrupt-%d", m.Key(), len(m.quarantined)), nil
}

// Quarantined returns the blobs set aside so far
func (m *MemoryBackend) Quarantined() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]byte, len(m.quarantined))
	for i, q := range m.quarantined {
		out[i] = append([]byte(nil), q...)
	}
	return out
}
