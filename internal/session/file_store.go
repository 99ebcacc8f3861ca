package session

import (
	"context"
	"time"

	"github.com/dreamware/shopstore/internal/storage"
)

// FileStore keeps every session in one JSON object keyed by session id
type FileStore struct {
	file *storage.JSONFile[map[string]*Entry]
	opts Options
}

func emptySessions() map[string]*Entry { return map[string]*Entry{} }

// NewFileStore creates a store over backend
func NewFileStore(backend storage.Backend, storageOpts storage.Options, opts Options) *FileStore {
	return &FileStore{
		file: storage.NewJSONFile(backend, emptySessions, storageOpts),
		opts: opts.withDefaults(),
	}
}

// OpenFileStore creates a store persisted at path
func OpenFileStore(path string, storageOpts storage.Options, opts Options) (*FileStore, error) {
	backend, err := storage.NewFileBackend(path)
	if err != nil {
		return nil, err
	}
	return NewFileStore(backend, storageOpts, opts), nil
}

// now returns the current time at the millisecond precision used on disk
func (s *FileStore) now() time.Time {
	return time.UnixMilli(s.opts.Now().UnixMilli())
}

// Set creates or replaces the entry for id
func (s *FileStore) Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := normalizePayload(data)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	now := s.now()
	entry := &Entry{
		Data:      payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl).Truncate(time.Millisecond),
	}
	err = s.file.Update(func(m *map[string]*Entry) (bool, error) {
		(*m)[id] = entry
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return entry.Clone(), nil
}

// Get returns the live entry for id. An expired entry is removed and nil is returned.
func (s *FileStore) Get(ctx context.Context, id string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var found *Entry
	err := s.file.Update(func(m *map[string]*Entry) (bool, error) {
		e, ok := (*m)[id]
		if !ok {
			return false, nil
		}
		if e.IsExpired(s.now()) {
			delete(*m, id)
			return true, nil
		}
		found = e
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return found.Clone(), nil
}

// Update merges data into the payload and stamps UpdatedAt. ExpiresAt is kept.
func (s *FileStore) Update(ctx context.Context, id string, data map[string]any) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	patch, err := normalizePayload(data)
	if err != nil {
		return nil, err
	}

	var updated *Entry
	err = s.file.Update(func(m *map[string]*Entry) (bool, error) {
		e, ok := (*m)[id]
		if !ok {
			return false, nil
		}
		now := s.now()
		if e.IsExpired(now) {
			delete(*m, id)
			return true, nil
		}
		if e.Data == nil {
			e.Data = map[string]any{}
		}
		for k, v := range patch {
			e.Data[k] = v
		}
		e.UpdatedAt = now
		updated = e
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Delete removes the entry for id and reports whether it existed
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	removed := false
	err := s.file.Update(func(m *map[string]*Entry) (bool, error) {
		if _, ok := (*m)[id]; !ok {
			return false, nil
		}
		delete(*m, id)
		removed = true
		return true, nil
	})
	return removed, err
}

// ClearExpired keeps only the entries with ExpiresAt after now
func (s *FileStore) ClearExpired(ctx context.Context) (map[string]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var active map[string]*Entry
	err := s.file.Update(func(m *map[string]*Entry) (bool, error) {
		now := s.now()
		active = make(map[string]*Entry, len(*m))
		for id, e := range *m {
			if !e.IsExpired(now) {
				active[id] = e
			}
		}
		if len(active) == len(*m) {
			return false, nil
		}
		*m = active
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneEntries(active), nil
}

// All returns every stored entry without checking expiry
func (s *FileStore) All(ctx context.Context) (map[string]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	return cloneEntries(m), nil
}
