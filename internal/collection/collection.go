package collection

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dreamware/shopstore/internal/storage"
)

// ErrCollectionFull is returned by Create once MaxDocuments is reached
var ErrCollectionFull = errors.New("collection is full")

// Options configure a Collection
type Options struct {
	Storage      storage.Options  // Corruption policy and file size limit
	MaxDocuments int              // 0 means unlimited
	Now          func() time.Time // Clock for createdAt, defaults to time.Now
	NewID        func() string    // Identifier source, defaults to NewID
}

// Collection is a document store over one JSON array file.
// Every operation loads the whole array and every write saves the whole array,
// with the file lock held in between, so concurrent calls never lose updates.
type Collection struct {
	name    string                         // Logical name, e.g. "products"
	file    *storage.JSONFile[[]Document] // Backing blob
	maxDocs int                            // Create limit, 0 = none
	now     func() time.Time               // Clock
	newID   func() string                  // Identifier source
	stats   Stats                          // Operation counters, accessed atomically
}

func emptyCollection() []Document { return []Document{} }

// New creates a collection named name over backend
func New(name string, backend storage.Backend, opts Options) *Collection {
	c := &Collection{
		name:    name,
		file:    storage.NewJSONFile(backend, emptyCollection, opts.Storage),
		maxDocs: opts.MaxDocuments,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = NewID
	}
	return c
}

// Open creates a collection stored in <dir>/<name>.json
func Open(dir, name string, opts Options) (*Collection, error) {
	backend, err := storage.NewFileBackend(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, err
	}
	return New(name, backend, opts), nil
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

// Create assigns a fresh _id, merges doc, stamps createdAt, appends and persists.
// The returned document is exactly what a later read returns.
func (c *Collection) Create(doc map[string]any) (Document, error) {
	var created Document
	err := c.observe(opCreate, func() error {
		fields, err := normalizeDocument(doc)
		if err != nil {
			return err
		}
		return c.file.Update(func(docs *[]Document) (bool, error) {
			d, err := c.insert(docs, fields)
			if err != nil {
				return false, err
			}
			created = d
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindOne returns the first document in insertion order matching p, or nil
func (c *Collection) FindOne(p Predicate) (Document, error) {
	var found Document
	err := c.observe(opFind, func() error {
		pred, err := normalizePredicate(p)
		if err != nil {
			return err
		}
		docs, err := c.load()
		if err != nil {
			return err
		}
		if i := indexByPredicate(docs, pred); i >= 0 {
			found = docs[i]
		}
		return nil
	})
	return found, err
}

// FindByID returns the document with the given identifier, or nil
func (c *Collection) FindByID(id string) (Document, error) {
	var found Document
	err := c.observe(opFind, func() error {
		docs, err := c.load()
		if err != nil {
			return err
		}
		if i := indexByID(docs, id); i >= 0 {
			found = docs[i]
		}
		return nil
	})
	return found, err
}

// Find returns every document matching p in insertion order.
// A nil or empty predicate returns the whole collection.
func (c *Collection) Find(p Predicate) ([]Document, error) {
	out := []Document{}
	err := c.observe(opFind, func() error {
		pred, err := normalizePredicate(p)
		if err != nil {
			return err
		}
		docs, err := c.load()
		if err != nil {
			return err
		}
		for _, d := range docs {
			if matches(d, pred) {
				out = append(out, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByIDAndUpdate shallow-merges patch into the document and persists it.
// Fields not named in patch are preserved; _id cannot be changed.
// Returns nil without writing when no document has the identifier.
func (c *Collection) FindByIDAndUpdate(id string, patch map[string]any) (Document, error) {
	var updated Document
	err := c.observe(opUpdate, func() error {
		fields, err := normalizeDocument(patch)
		if err != nil {
			return err
		}
		return c.file.Update(func(docs *[]Document) (bool, error) {
			i := indexByID(*docs, id)
			if i < 0 {
				return false, nil
			}
			merge((*docs)[i], fields)
			updated = (*docs)[i].Clone()
			return true, nil
		})
	})
	return updated, err
}

// UpdateOne applies FindByIDAndUpdate semantics to the first document matching p
func (c *Collection) UpdateOne(p Predicate, patch map[string]any) (Document, error) {
	var updated Document
	err := c.observe(opUpdate, func() error {
		pred, err := normalizePredicate(p)
		if err != nil {
			return err
		}
		fields, err := normalizeDocument(patch)
		if err != nil {
			return err
		}
		return c.file.Update(func(docs *[]Document) (bool, error) {
			i := indexByPredicate(*docs, pred)
			if i < 0 {
				return false, nil
			}
			merge((*docs)[i], fields)
			updated = (*docs)[i].Clone()
			return true, nil
		})
	})
	return updated, err
}

// FindByIDAndModify replaces a document with fn's result, atomically with
// respect to every other operation on the collection. fn receives a copy.
// Returns nil without calling fn when no document has the identifier.
func (c *Collection) FindByIDAndModify(id string, fn func(Document) (Document, error)) (Document, error) {
	var updated Document
	err := c.observe(opUpdate, func() error {
		return c.file.Update(func(docs *[]Document) (bool, error) {
			d, err := modifyAt(*docs, id, fn)
			if err != nil || d == nil {
				return false, err
			}
			updated = d.Clone()
			return true, nil
		})
	})
	return updated, err
}

// FindByIDAndDelete removes the document and returns it, or nil if absent
func (c *Collection) FindByIDAndDelete(id string) (Document, error) {
	var removed Document
	err := c.observe(opDelete, func() error {
		return c.file.Update(func(docs *[]Document) (bool, error) {
			i := indexByID(*docs, id)
			if i < 0 {
				return false, nil
			}
			removed = (*docs)[i]
			*docs = append((*docs)[:i], (*docs)[i+1:]...)
			c.recordSize(len(*docs))
			return true, nil
		})
	})
	return removed, err
}

// CountDocuments returns the number of documents
func (c *Collection) CountDocuments() (int, error) {
	n := 0
	err := c.observe(opCount, func() error {
		docs, err := c.load()
		n = len(docs)
		return err
	})
	return n, err
}

// Tx runs fn with exclusive access to the collection and saves once at the end
// if fn changed anything. If fn fails nothing is saved.
func (c *Collection) Tx(fn func(tx *Tx) error) error {
	return c.observe(opTx, func() error {
		return c.file.Update(func(docs *[]Document) (bool, error) {
			tx := &Tx{c: c, docs: *docs}
			if err := fn(tx); err != nil {
				return false, err
			}
			*docs = tx.docs
			return tx.changed, nil
		})
	})
}

// insert stamps fields with a fresh identifier and creation time and appends them
func (c *Collection) insert(docs *[]Document, fields Document) (Document, error) {
	if c.maxDocs > 0 && len(*docs) >= c.maxDocs {
		return nil, fmt.Errorf("%s: %d documents: %w", c.name, len(*docs), ErrCollectionFull)
	}

	id := c.newID()
	for indexByID(*docs, id) >= 0 {
		id = c.newID()
	}

	fields[IDField] = id
	fields[CreatedAtField] = c.now().UTC().Format(time.RFC3339Nano)
	*docs = append(*docs, fields)
	c.recordSize(len(*docs))
	return fields.Clone(), nil
}

func (c *Collection) load() ([]Document, error) {
	docs, err := c.file.Load()
	if err != nil {
		return nil, err
	}
	c.recordSize(len(docs))
	return docs, nil
}

// modifyAt replaces docs[id] with fn's result and returns the stored value
func modifyAt(docs []Document, id string, fn func(Document) (Document, error)) (Document, error) {
	i := indexByID(docs, id)
	if i < 0 {
		return nil, nil
	}
	next, err := fn(docs[i].Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return docs[i], nil
	}
	normalized, err := normalizeDocument(next)
	if err != nil {
		return nil, err
	}
	normalized[IDField] = id
	docs[i] = normalized
	return normalized, nil
}
