package shop

import (
	"github.com/dreamware/shopstore/internal/collection"
)

// CategoryField names the product's category
const CategoryField = "category"

// Products is the catalog service
type Products struct {
	coll *collection.Collection
}

// NewProducts creates the service over the products collection
func NewProducts(coll *collection.Collection) *Products {
	return &Products{coll: coll}
}

// Collection returns the underlying collection, for stock adjustments
func (p *Products) Collection() *collection.Collection { return p.coll }

// Create adds a product. A missing stock field is stored as zero.
func (p *Products) Create(fields map[string]any) (collection.Document, error) {
	doc := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	if _, ok := doc[StockField]; !ok {
		doc[StockField] = 0
	}
	return p.coll.Create(doc)
}

// Get returns the product, or nil
func (p *Products) Get(id string) (collection.Document, error) {
	return p.coll.FindByID(id)
}

// List returns every product, or only those in category when it is not empty
func (p *Products) List(category string) ([]collection.Document, error) {
	if category == "" {
		return p.coll.Find(nil)
	}
	return p.coll.Find(collection.Predicate{CategoryField: category})
}

// Update merges fields into the product and returns it, or nil if absent
func (p *Products) Update(id string, fields map[string]any) (collection.Document, error) {
	return p.coll.FindByIDAndUpdate(id, fields)
}

// Delete removes the product and reports whether it existed
func (p *Products) Delete(id string) (bool, error) {
	d, err := p.coll.FindByIDAndDelete(id)
	return d != nil, err
}
