package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ErrGCSObjectNotExist is returned by GCSClient.ReadObject for a missing object
var ErrGCSObjectNotExist = storage.ErrObjectNotExist

// GCSObject is a listed Cloud Storage object
type GCSObject struct {
	Name string
	Size int64
}

// GCSClient defines an interface for Cloud Storage operations to enable mocking
//
//go:generate mockgen -source=gcs.go -destination=../mocks/gcs.go -package=mocks -mock_names=GCSClient=MockGCSClient
type GCSClient interface {
	// ListObjects lists every object under prefix, recursively
	ListObjects(ctx context.Context, bucket, prefix string) ([]GCSObject, error)

	// ReadObject reads a whole object
	ReadObject(ctx context.Context, bucket, name string) ([]byte, error)

	// WriteObject creates or replaces an object
	WriteObject(ctx context.Context, bucket, name string, data []byte, contentType string) error

	// DeleteObject deletes an object
	DeleteObject(ctx context.Context, bucket, name string) error

	// Close releases the underlying client
	Close() error
}

// RealGCSClient implements GCSClient using the official Cloud Storage client
type RealGCSClient struct {
	client *storage.Client
}

// NewGCSClient creates a Cloud Storage client.
// An endpoint switches to an unauthenticated emulator connection.
func NewGCSClient(ctx context.Context, credentialsFile string, endpoint string) (GCSClient, error) {
	var opts []option.ClientOption
	switch {
	case endpoint != "":
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &RealGCSClient{client: client}, nil
}

// ListObjects lists every object under prefix, recursively
func (c *RealGCSClient) ListObjects(ctx context.Context, bucket, prefix string) ([]GCSObject, error) {
	it := c.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []GCSObject
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, GCSObject{Name: attrs.Name, Size: attrs.Size})
	}
	return objects, nil
}

// ReadObject reads a whole object
func (c *RealGCSClient) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := c.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}

// WriteObject creates or replaces an object
func (c *RealGCSClient) WriteObject(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	w := c.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// DeleteObject deletes an object
func (c *RealGCSClient) DeleteObject(ctx context.Context, bucket, name string) error {
	return c.client.Bucket(bucket).Object(name).Delete(ctx)
}

// Close releases the underlying client
func (c *RealGCSClient) Close() error {
	return c.client.Close()
}
