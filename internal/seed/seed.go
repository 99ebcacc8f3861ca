// Package seed loads YAML fixtures into empty collections.
package seed

import (
	"fmt"
	"os"

	"github.com/dreamware/shopstore/internal/collection"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Fixture maps a collection name to the documents it should start with
type Fixture map[string][]map[string]any

// Load reads a fixture file such as:
//
//	products:
//	  - name: Apple
//	    category: Fruits
//	    stocks: 5
func Load(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes fixture YAML
func Parse(raw []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if f == nil {
		f = Fixture{}
	}
	return f, nil
}

// Apply inserts each collection's documents, but only into collections that
// are currently empty, so restarting with the same fixture is harmless.
// It returns the number of documents inserted per collection.
func Apply(db *collection.Database, f Fixture) (map[string]int, error) {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	slices.Sort(names)

	inserted := make(map[string]int, len(f))
	for _, name := range names {
		c, err := db.Collection(name)
		if err != nil {
			return inserted, err
		}
		n, err := c.CountDocuments()
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", name, err)
		}
		if n > 0 {
			zap.S().Debugw("Skipping seed for non-empty collection", "collection", name, "documents", n)
			continue
		}
		for _, doc := range f[name] {
			if _, err := c.Create(doc); err != nil {
				return inserted, fmt.Errorf("seed %s: %w", name, err)
			}
			inserted[name]++
		}
		zap.S().Infow("Seeded collection", "collection", name, "documents", inserted[name])
	}
	return inserted, nil
}
