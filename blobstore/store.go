package blobstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is a flat namespace of immutable artifacts.
type Store interface {
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a whole blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Exists reports whether a blob is present.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// CleanName validates an artifact name and returns its canonical form.
// Names are slash separated, relative and may not escape the store root.
func CleanName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("blobstore: empty name")
	}
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || clean == "." {
		return "", fmt.Errorf("blobstore: invalid name %q", name)
	}
	return clean, nil
}

// Sub returns a Store that prefixes every name with dir + "/".
func Sub(s Store, dir string) Store {
	return &subStore{parent: s, dir: strings.Trim(dir, "/")}
}

type subStore struct {
	parent Store
	dir    string
}

func (s *subStore) name(n string) string { return s.dir + "/" + n }

func (s *subStore) Put(ctx context.Context, name string, data []byte) error {
	return s.parent.Put(ctx, s.name(name), data)
}

func (s *subStore) Get(ctx context.Context, name string) ([]byte, error) {
	return s.parent.Get(ctx, s.name(name))
}

func (s *subStore) Exists(ctx context.Context, name string) (bool, error) {
	return s.parent.Exists(ctx, s.name(name))
}

func (s *subStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.parent.List(ctx, s.name(prefix))
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		out = append(out, strings.TrimPrefix(n, s.dir+"/"))
	}
	return out, nil
}

func (s *subStore) Delete(ctx context.Context, name string) error {
	return s.parent.Delete(ctx, s.name(name))
}
