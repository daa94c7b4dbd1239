package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// FileStore persists artifacts as a JSON file, backing the durable tier.
// The file is written with 0600 perms since it holds a bearer token.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*Artifacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read session file")
	}

	artifacts := &Artifacts{}
	if err := json.Unmarshal(raw, artifacts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode session file")
	}

	return artifacts, nil
}

func (s *FileStore) Save(artifacts *Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(artifacts, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session artifacts")
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create session directory")
		}
	}

	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to write session file")
	}

	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to remove session file")
	}

	return nil
}

var _ TierStore = (*FileStore)(nil)
