package collection

// Tx is a view of a collection inside Collection.Tx. It is only valid for the
// duration of the callback and must not be used from other goroutines.
type Tx struct {
	c       *Collection
	docs    []Document
	changed bool
}

// Len returns the number of documents
func (tx *Tx) Len() int { return len(tx.docs) }

// FindByID returns a copy of the document, or nil
func (tx *Tx) FindByID(id string) Document {
	if i := indexByID(tx.docs, id); i >= 0 {
		return tx.docs[i].Clone()
	}
	return nil
}

// Find returns copies of the matching documents in insertion order
func (tx *Tx) Find(p Predicate) ([]Document, error) {
	pred, err := normalizePredicate(p)
	if err != nil {
		return nil, err
	}
	out := []Document{}
	for _, d := range tx.docs {
		if matches(d, pred) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// Create inserts a new document as Collection.Create does
func (tx *Tx) Create(doc map[string]any) (Document, error) {
	fields, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	created, err := tx.c.insert(&tx.docs, fields)
	if err != nil {
		return nil, err
	}
	tx.changed = true
	return created, nil
}

// Update shallow-merges patch into the document; nil if absent
func (tx *Tx) Update(id string, patch map[string]any) (Document, error) {
	fields, err := normalizeDocument(patch)
	if err != nil {
		return nil, err
	}
	i := indexByID(tx.docs, id)
	if i < 0 {
		return nil, nil
	}
	merge(tx.docs[i], fields)
	tx.changed = true
	return tx.docs[i].Clone(), nil
}

// Modify replaces the document with fn's result; nil if absent
func (tx *Tx) Modify(id string, fn func(Document) (Document, error)) (Document, error) {
	d, err := modifyAt(tx.docs, id, fn)
	if err != nil || d == nil {
		return nil, err
	}
	tx.changed = true
	return d.Clone(), nil
}
