package session

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTTL is used when Set is called with a ttl <= 0 and the store was not
// configured with its own default
const DefaultTTL = 7 * 24 * time.Hour

// Field names kept next to the payload in the stored object
const (
	CreatedAtField = "createdAt"
	ExpiresAtField = "expiresAt"
	UpdatedAtField = "updatedAt"
)

// Store is a key-value store for session state with absolute per-entry expiry.
// An entry whose ExpiresAt is not after the current time is treated as absent.
// Missing entries are not errors: Get and Update return nil, Delete returns false.
type Store interface {
	// Set creates or replaces the entry for id. A ttl <= 0 selects the default TTL.
	Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) (*Entry, error)
	// Get returns the live entry, deleting it first if it has expired
	Get(ctx context.Context, id string) (*Entry, error)
	// Update merges data into the payload of a live entry without extending it
	Update(ctx context.Context, id string, data map[string]any) (*Entry, error)
	// Delete removes the entry and reports whether one existed
	Delete(ctx context.Context, id string) (bool, error)
	// ClearExpired drops every expired entry and returns the survivors
	ClearExpired(ctx context.Context) (map[string]*Entry, error)
	// All returns every stored entry, expired ones included
	All(ctx context.Context) (map[string]*Entry, error)
}

// Options configure a Store
type Options struct {
	DefaultTTL time.Duration    // 0 selects DefaultTTL
	Now        func() time.Time // Clock, defaults to time.Now
}

func (o Options) withDefaults() Options {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Entry is one stored session. On disk the payload fields sit next to the
// time fields in a single flat object, with times in epoch milliseconds.
type Entry struct {
	Data      map[string]any // Caller payload
	CreatedAt time.Time      // When Set was called
	ExpiresAt time.Time      // Absolute expiry
	UpdatedAt time.Time      // Last Update, zero if never updated
}

// IsExpired reports whether the entry is logically absent at now
func (e *Entry) IsExpired(now time.Time) bool {
	return e == nil || !e.ExpiresAt.After(now)
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Data = cloneMap(e.Data)
	return &out
}

// MarshalJSON writes the flat on-disk form
func (e Entry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		flat[k] = v
	}
	flat[CreatedAtField] = e.CreatedAt.UnixMilli()
	flat[ExpiresAtField] = e.ExpiresAt.UnixMilli()
	if !e.UpdatedAt.IsZero() {
		flat[UpdatedAtField] = e.UpdatedAt.UnixMilli()
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat on-disk form. A missing or non-numeric
// expiresAt leaves ExpiresAt zero, which makes the entry expired.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if flat == nil {
		return fmt.Errorf("session entry must be an object")
	}
	e.CreatedAt = millis(flat[CreatedAtField])
	e.ExpiresAt = millis(flat[ExpiresAtField])
	e.UpdatedAt = millis(flat[UpdatedAtField])
	for _, k := range reservedFields {
		delete(flat, k)
	}
	e.Data = flat
	return nil
}

var reservedFields = []string{CreatedAtField, ExpiresAtField, UpdatedAtField}

func millis(v any) time.Time {
	ms, ok := v.(float64)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}

// normalizePayload converts data to its JSON form and drops the reserved time
// fields, which the store owns
func normalizePayload(data map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode session data: %w", err)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode session data: %w", err)
		}
	}
	for _, k := range reservedFields {
		delete(out, k)
	}
	return out, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneMap(tv)
	case []any:
		s := make([]any, len(tv))
		for i, inner := range tv {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

func cloneEntries(in map[string]*Entry) map[string]*Entry {
	out := make(map[string]*Entry, len(in))
	for id, e := range in {
		out[id] = e.Clone()
	}
	return out
}
