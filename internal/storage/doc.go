// Package storage is the leaf persistence layer of shopstore: it loads and
// saves one whole JSON blob (a collection or the session table) per file.
//
// # Overview
//
// Nothing in shopstore writes partial records. Every write serializes the
// complete value and replaces the file; every read decodes the complete file.
// This package owns the three things that make that safe:
//
//   - Backend: where the bytes live (FileBackend on disk, MemoryBackend in tests)
//   - JSONFile: typed access with locking, first-touch creation and the
//     corrupt-content policy
//   - the lock registry: one exclusive lock per file path, process wide
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│   collection.Collection / session   │
//	└─────────────────────────────────────┘
//	                 │ Load / Update
//	                 ▼
//	┌─────────────────────────────────────┐
//	│          JSONFile[T]                │
//	│  lock(key) → read → fn → write      │
//	└─────────────────────────────────────┘
//	                 │
//	        ┌────────┴────────┐
//	        ▼                 ▼
//	┌──────────────┐  ┌───────────────┐
//	│ FileBackend  │  │ MemoryBackend │
//	└──────────────┘  └───────────────┘
//
// # Concurrency
//
// JSONFile.Update holds the backend key's lock across read, modify and write,
// which removes lost updates between concurrent callers. Load takes the same
// lock so readers never observe a half-applied update. Lock acquisition retries
// with backoff; when the budget runs out the call fails with ErrConflict and
// nothing has been changed.
//
// FileBackend.Write goes through a temp file and rename, so a crash leaves
// either the old or the new file on disk.
//
// # Error Handling
//
// IOError: the medium failed (permissions, a directory in place of the file).
// It is always returned to the caller and never read as "empty".
//
// CorruptError / ErrCorrupt: the file exists but does not decode. Under
// CorruptFail (the default) reads and writes are refused so the file survives
// for repair. Under CorruptRecover the bytes are copied to
// <path>.corrupt-<unixnano>, a warning is logged and the value starts over
// empty.
//
// ErrTooLarge: the file is bigger than Options.MaxBytes.
//
// # Usage Examples
//
//	backend, _ := storage.NewFileBackend("data/products.json")
//	file := storage.NewJSONFile(backend, func() []map[string]any { return []map[string]any{} }, storage.Options{})
//
//	err := file.Update(func(docs *[]map[string]any) (bool, error) {
//	    *docs = append(*docs, map[string]any{"name": "Apple"})
//	    return true, nil
//	})
package storage
