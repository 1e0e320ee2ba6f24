package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Load when the document file does not exist.
var ErrNotFound = errors.New("document not found")

// ParseError reports a document that is not valid JSON or fails validation.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Validator is implemented by documents that check their own field presence
// after decoding.
type Validator interface {
	Validate() error
}

// JSONStore provides file-based storage for whole JSON documents.
type JSONStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewJSONStore creates a new JSONStore.
func NewJSONStore() *JSONStore {
	return &JSONStore{locks: make(map[string]*sync.Mutex)}
}

// Load reads the document at path into v.
func (s *JSONStore) Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return &ParseError{Path: path, Err: err}
		}
	}
	return nil
}

// Save serializes v as indented JSON and replaces the file at path.
// The bytes go to a temporary file first so readers never see a partial document.
func (s *JSONStore) Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Update runs a read-modify-write cycle on the document at path while holding
// that path's lock. A missing file leaves v untouched (callers pass an empty
// document). If fn returns an error nothing is written.
func (s *JSONStore) Update(path string, v any, fn func() error) error {
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := s.Load(path, v); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.Save(path, v)
}

// Read loads the document at path while holding that path's lock, so it never
// interleaves with an Update.
func (s *JSONStore) Read(path string, v any) error {
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	return s.Load(path, v)
}

func (s *JSONStore) lockFor(path string) *sync.Mutex {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}
