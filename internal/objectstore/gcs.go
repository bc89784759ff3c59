package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
)

// GCSStore is a Store over Google Cloud Storage
type GCSStore struct {
	client adapter.GCSClient
}

// NewGCSStore creates a Cloud Storage store
func NewGCSStore(client adapter.GCSClient) *GCSStore {
	return &GCSStore{client: client}
}

// List returns every object under prefix, sorted by name
func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	listed, err := s.client.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
	}

	objects := make([]Object, 0, len(listed))
	for _, obj := range listed {
		objects = append(objects, Object{Key: obj.Name, Size: obj.Size})
	}
	return objects, nil
}

// Get reads a whole object
func (s *GCSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := s.client.ReadObject(ctx, bucket, key)
	if errors.Is(err, adapter.ErrGCSObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", domain.ErrObjectNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put creates or replaces an object
func (s *GCSStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := s.client.WriteObject(ctx, bucket, key, data, contentType); err != nil {
		return fmt.Errorf("failed to put gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// DeletePrefix deletes every object under prefix
func (s *GCSStore) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	objects, err := s.List(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := s.client.DeleteObject(ctx, bucket, obj.Key); err != nil && !errors.Is(err, adapter.ErrGCSObjectNotExist) {
			return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, obj.Key, err)
		}
	}
	return nil
}
