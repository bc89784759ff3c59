package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
)

// LocalStore is a Store over the local file system. Buckets are ignored and
// keys are file paths.
type LocalStore struct {
	fs adapter.FileSystem
}

// NewLocalStore creates a local file system store
func NewLocalStore(fs adapter.FileSystem) *LocalStore {
	return &LocalStore{fs: fs}
}

// List returns every file whose path starts with prefix, sorted by path
func (s *LocalStore) List(ctx context.Context, _ string, prefix string) ([]Object, error) {
	root := prefix
	if !strings.HasSuffix(root, "/") {
		root = filepath.Dir(root)
	}
	if root == "" {
		root = "."
	}

	var objects []Object
	err := s.fs.WalkFiles(root, func(p string, size int64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := filepath.ToSlash(p)
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, Object{Key: key, Size: size})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Get reads a whole file
func (s *LocalStore) Get(_ context.Context, _ string, key string) ([]byte, error) {
	data, err := s.fs.ReadFile(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
	}
	return data, err
}

// Put writes a file, creating parent directories
func (s *LocalStore) Put(_ context.Context, _ string, key string, data []byte, _ string) error {
	return s.fs.WriteFile(key, data)
}

// DeletePrefix removes a directory prefix recursively, or the files matching a name prefix
func (s *LocalStore) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	if strings.HasSuffix(prefix, "/") {
		return s.fs.RemoveAll(strings.TrimSuffix(prefix, "/"))
	}

	objects, err := s.List(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := s.fs.RemoveAll(obj.Key); err != nil {
			return err
		}
	}
	return nil
}
