package blobstore

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
)

// LocalStore implements Store on the local file system.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root. An empty root resolves
// names relative to the working directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	if s.root == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(s.root, name)
}

// Open opens a file for reading.
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(s.path(name))
}

// Put writes the file through a temporary file and a rename, so readers see
// either the old or the new content.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(p, bytes.NewReader(data))
}

// List returns the slash-separated names of all regular files under root
// that start with prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root := s.root
	if root == "" {
		root = "."
	}

	var names []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
