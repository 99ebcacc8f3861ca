package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
products:
  - name: Apple
    category: Fruits
    stocks: 5
    tags: [red, sweet]
  - name: Carrot
    category: Vegetables
    stocks: 2
categories:
  - name: Fruits
`

func TestLoad(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))

		f, err := Load(path)
		require.NoError(t, err)
		assert.Len(t, f["products"], 2)
		assert.Equal(t, "Apple", f["products"][0]["name"])
		assert.Len(t, f["categories"], 1)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := Parse([]byte("products: 5"))
		assert.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		f, err := Parse(nil)
		require.NoError(t, err)
		assert.Empty(t, f)
	})
}

func TestApply(t *testing.T) {
	f, err := Parse([]byte(fixtureYAML))
	require.NoError(t, err)

	t.Run("fills empty collections once", func(t *testing.T) {
		db := collection.NewMemoryDatabase(collection.DefaultCollections, collection.Options{})

		inserted, err := Apply(db, f)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"products": 2, "categories": 1}, inserted)

		apple, err := db.MustCollection(collection.Products).FindOne(collection.Predicate{"name": "Apple"})
		require.NoError(t, err)
		require.NotNil(t, apple)
		assert.Equal(t, float64(5), apple["stocks"])
		assert.Equal(t, []any{"red", "sweet"}, apple["tags"])
		assert.NotEmpty(t, apple.ID())

		again, err := Apply(db, f)
		require.NoError(t, err)
		assert.Empty(t, again)
		n, _ := db.MustCollection(collection.Products).CountDocuments()
		assert.Equal(t, 2, n)
	})

	t.Run("unknown collection", func(t *testing.T) {
		db := collection.NewMemoryDatabase([]string{collection.Products}, collection.Options{})
		_, err := Apply(db, Fixture{"carts": {{"a": 1}}})
		assert.ErrorIs(t, err, collection.ErrUnknownCollection)
	})
}
