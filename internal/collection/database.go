package collection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dreamware/shopstore/internal/storage"
	"golang.org/x/exp/slices"
)

// Collection names used by the shop
const (
	Users      = "users"
	Products   = "products"
	Categories = "categories"
	Orders     = "orders"
	Reviews    = "reviews"
)

// DefaultCollections lists every collection the shop opens
var DefaultCollections = []string{Users, Products, Categories, Orders, Reviews}

// ErrUnknownCollection is returned for a name the database was not opened with
var ErrUnknownCollection = errors.New("unknown collection")

// Database maps collection names to their open collections
type Database struct {
	collections map[string]*Collection // name -> collection
	dir         string                 // data directory, "" in memory mode
	mu          sync.RWMutex           // Protects collections
}

// OpenDatabase opens one file per name under dir, creating missing files.
// Every file is read once so that corrupt or unreadable files fail at startup
// instead of on the first request.
func OpenDatabase(dir string, names []string, opts Options) (*Database, error) {
	db := &Database{collections: make(map[string]*Collection, len(names)), dir: dir}
	for _, name := range names {
		c, err := Open(dir, name, opts)
		if err != nil {
			return nil, err
		}
		if _, err := c.CountDocuments(); err != nil {
			return nil, fmt.Errorf("open collection %s: %w", name, err)
		}
		db.collections[name] = c
	}
	return db, nil
}

// NewMemoryDatabase creates collections that live only in memory
func NewMemoryDatabase(names []string, opts Options) *Database {
	db := &Database{collections: make(map[string]*Collection, len(names))}
	for _, name := range names {
		db.collections[name] = New(name, storage.NewMemoryBackend(), opts)
	}
	return db
}

// Collection returns the named collection
func (d *Database) Collection(name string) (*Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// MustCollection is Collection for names known to exist
func (d *Database) MustCollection(name string) *Collection {
	c, err := d.Collection(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Names returns the collection names in sorted order
func (d *Database) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dir returns the data directory, or "" for an in-memory database
func (d *Database) Dir() string { return d.dir }

// Info summarizes one collection
type Info struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
	Stats     Stats  `json:"stats"`
}

// Info returns a summary of every collection
func (d *Database) Info() ([]Info, error) {
	names := d.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		c := d.MustCollection(name)
		n, err := c.CountDocuments()
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		out = append(out, Info{Name: name, Documents: n, Stats: c.Stats()})
	}
	return out, nil
}
