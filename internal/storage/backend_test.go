package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestMemoryBackend tests the in-memory backend
func TestMemoryBackend(t *testing.T) {
	t.Run("new backend has no blob", func(t *testing.T) {
		b := NewMemoryBackend()

		_, err := b.Read()
		if !errors.Is(err, ErrNotExist) {
			t.Errorf("Expected ErrNotExist, got %v", err)
		}
	})

	t.Run("write and read", func(t *testing.T) {
		b := NewMemoryBackend()

		if err := b.Write([]byte("[1]")); err != nil {
			t.Fatalf("Failed to write: %v", err)
		}
		value, err := b.Read()
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if !bytes.Equal(value, []byte("[1]")) {
			t.Errorf("Expected '[1]', got %s", string(value))
		}
	})

	t.Run("read returns a copy", func(t *testing.T) {
		b := NewMemoryBackendWith([]byte("abc"))

		value, _ := b.Read()
		value[0] = 'X'

		again, _ := b.Read()
		if string(again) != "abc" {
			t.Errorf("Stored blob was modified through a read: %s", string(again))
		}
	})

	t.Run("write keeps a copy", func(t *testing.T) {
		b := NewMemoryBackend()
		input := []byte("abc")
		_ = b.Write(input)
		input[0] = 'X'

		value, _ := b.Read()
		if string(value) != "abc" {
			t.Errorf("Stored blob was modified through the input slice: %s", string(value))
		}
	})

	t.Run("keys are unique per instance", func(t *testing.T) {
		if NewMemoryBackend().Key() == NewMemoryBackend().Key() {
			t.Error("Expected distinct keys for distinct backends")
		}
	})
}

// TestFileBackend tests the on-disk backend
func TestFileBackend(t *testing.T) {
	t.Run("missing file creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		b, err := NewFileBackend(filepath.Join(dir, "x.json"))
		if err != nil {
			t.Fatalf("NewFileBackend: %v", err)
		}

		_, err = b.Read()
		if !errors.Is(err, ErrNotExist) {
			t.Fatalf("Expected ErrNotExist, got %v", err)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("Expected directory %s to exist: %v", dir, err)
		}
	})

	t.Run("write replaces file and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		b, _ := NewFileBackend(filepath.Join(dir, "x.json"))

		for i := 0; i < 3; i++ {
			if err := b.Write([]byte(fmt.Sprintf("[%d]", i))); err != nil {
				t.Fatalf("Write %d: %v", i, err)
			}
		}

		value, err := b.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(value) != "[2]" {
			t.Errorf("Expected last write, got %s", string(value))
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("Expected only x.json in %s, got %d entries", dir, len(entries))
		}
	})

	t.Run("relative paths resolve to the same key", func(t *testing.T) {
		a, _ := NewFileBackend("data/../data/users.json")
		b, _ := NewFileBackend("data/users.json")
		if a.Key() != b.Key() {
			t.Errorf("Expected equal keys, got %s and %s", a.Key(), b.Key())
		}
	})
}

// TestMemoryBackendConcurrency tests thread-safe concurrent access
func TestMemoryBackendConcurrency(t *testing.T) {
	b := NewMemoryBackend()
	numGoroutines := 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines * 2)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			_ = b.Write([]byte(fmt.Sprintf("value-%d", id)))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = b.Read()
		}()
	}
	wg.Wait()

	value, err := b.Read()
	if err != nil {
		t.Fatalf("Read after concurrent writes: %v", err)
	}
	if !bytes.HasPrefix(value, []byte("value-")) {
		t.Errorf("Unexpected value %s", string(value))
	}
}
