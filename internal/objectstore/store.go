package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/sparkify/datalake-etl/internal/domain"
)

// Backends
const (
	BackendS3    = "s3"
	BackendGCS   = "gs"
	BackendLocal = "file"
)

// Content types written by the pipeline
const (
	ContentTypeParquet = "application/vnd.apache.parquet"
	ContentTypeText    = "text/plain"
)

// Object is a listed object
type Object struct {
	Key  string
	Size int64
}

// Store defines the operations the pipeline needs from an object storage backend.
// Keys are bucket-relative for cloud backends and absolute paths for the local backend.
//
//go:generate mockgen -source=store.go -destination=../mocks/objectstore.go -package=mocks -mock_names=Store=MockObjectStore
type Store interface {
	// List returns every object whose key starts with prefix, sorted by key
	List(ctx context.Context, bucket, prefix string) ([]Object, error)

	// Get reads a whole object, returning domain.ErrObjectNotFound when it does not exist
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put creates or replaces an object
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// DeletePrefix deletes every object whose key starts with prefix
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}

// Location is a parsed storage URI such as s3a://bucket/key, gs://bucket/key or /local/path
type Location struct {
	Scheme string // as written: s3, s3a, s3n, gs, file
	Bucket string
	Path   string // bucket-relative key, or an absolute path for the local backend
}

// Parse parses a storage URI. A URI without a scheme is a local path.
func Parse(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Location{}, fmt.Errorf("%w: empty uri", domain.ErrInvalidLocation)
	}

	if !strings.Contains(uri, "://") {
		return Location{Scheme: BackendLocal, Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidLocation, uri, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "file":
		// keep wildcards such as '?' that url.Parse would read as a query
		p := uri[len(u.Scheme)+3:]
		if p == "" {
			return Location{}, fmt.Errorf("%w: %s: missing path", domain.ErrInvalidLocation, uri)
		}
		return Location{Scheme: scheme, Path: p}, nil
	case "s3", "s3a", "s3n", "gs":
		if u.Host == "" {
			return Location{}, fmt.Errorf("%w: %s: missing bucket", domain.ErrInvalidLocation, uri)
		}
		// url.Parse would treat '*' literally but decode escapes; keep the raw key
		key := strings.TrimPrefix(uri[len(u.Scheme)+3+len(u.Host):], "/")
		return Location{Scheme: scheme, Bucket: u.Host, Path: key}, nil
	default:
		return Location{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedScheme, u.Scheme)
	}
}

// Backend returns the normalized backend name for the scheme
func (l Location) Backend() string {
	switch l.Scheme {
	case "s3", "s3a", "s3n":
		return BackendS3
	case "gs":
		return BackendGCS
	default:
		return BackendLocal
	}
}

// Join returns a child location
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.Path}, elem...)
	joined := path.Join(parts...)
	if l.Backend() != BackendLocal {
		joined = strings.TrimPrefix(joined, "/")
	}
	return Location{Scheme: l.Scheme, Bucket: l.Bucket, Path: joined}
}

// Key returns the key of an object path within the location's bucket
func (l Location) Key(key string) Location {
	return Location{Scheme: l.Scheme, Bucket: l.Bucket, Path: key}
}

// DirPrefix returns the location path as a directory prefix ending in "/"
func (l Location) DirPrefix() string {
	if l.Path == "" {
		return ""
	}
	return strings.TrimSuffix(l.Path, "/") + "/"
}

// String formats the location as a URI
func (l Location) String() string {
	if l.Backend() == BackendLocal {
		if l.Scheme == BackendLocal && strings.HasPrefix(l.Path, "/") {
			return "file://" + l.Path
		}
		return l.Path
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Path
}

// IsHidden reports whether an object is ignored by readers: any path segment below
// base starting with "_" or "." such as _SUCCESS markers, checksum files and
// _temporary staging directories. Segments of base itself are not checked.
func IsHidden(key, base string) bool {
	rel := strings.TrimPrefix(key, base)
	for _, segment := range strings.Split(rel, "/") {
		if strings.HasPrefix(segment, "_") || strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}
