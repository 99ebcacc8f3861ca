// Package collection implements a schema-less document store where each
// collection is one JSON array persisted through internal/storage.
//
// # Documents
//
// A Document is a map of JSON values. Create assigns a unique "_id" and a
// "createdAt" timestamp; callers cannot choose either. Documents returned by
// the store are copies, so mutating them never changes stored state.
//
// # Queries
//
// Find, FindOne and UpdateOne take a Predicate: a map of field to value where
// every field must be present and strictly equal (no type coercion, so "5"
// never matches 5). Results keep insertion order.
//
// # Concurrency
//
// Every operation holds the collection's file lock while it loads, changes
// and saves the array. Read-modify-write sequences that span more than one
// call must use FindByIDAndModify or Tx, which run the whole sequence under
// a single lock:
//
//	err := products.Tx(func(tx *collection.Tx) error {
//	    _, err := tx.Modify(id, func(d collection.Document) (collection.Document, error) {
//	        d["stocks"] = d["stocks"].(float64) - 1
//	        return d, nil
//	    })
//	    return err
//	})
//
// # Database
//
// Database opens the shop's five collections (users, products, categories,
// orders, reviews) under one data directory and reads each once, so corrupt
// files are reported at startup.
package collection
