package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/objectstore"
	"github.com/sparkify/datalake-etl/internal/ratelimit"
)

var (
	// ErrNoInputFiles is returned when a read pattern matches no objects
	ErrNoInputFiles = errors.New("path does not exist")
	// ErrUnsafeDestination is returned when a write would overwrite a whole bucket or file system root
	ErrUnsafeDestination = errors.New("unsafe destination")
)

// Config holds the explicit settings of an execution context.
// Credentials are carried here and never exported to the process environment.
type Config struct {
	RunID string

	AWS                adapter.S3Options
	GCSCredentialsFile string
	GCSEndpoint        string

	ReaderConcurrency  int
	ReaderMaxLineBytes int

	Compression    string
	MaxRowsPerFile int

	// RequestRate throttles requests to cloud object storage
	RequestRate ratelimit.Config
}

// Factories builds the storage clients of a session
type Factories struct {
	S3         func(ctx context.Context, opts adapter.S3Options) (adapter.S3Client, error)
	GCS        func(ctx context.Context, credentialsFile, endpoint string) (adapter.GCSClient, error)
	FileSystem adapter.FileSystem
	JSON       adapter.JSON
}

// DefaultFactories returns factories backed by the real SDK clients
func DefaultFactories() Factories {
	return Factories{
		S3:         adapter.NewS3Client,
		GCS:        adapter.NewGCSClient,
		FileSystem: adapter.NewFileSystem(),
		JSON:       adapter.NewJSON(),
	}
}

// Provider hands out the single execution context of a process
type Provider struct {
	cfg       Config
	factories Factories

	once    sync.Once
	session *Session
}

// NewProvider creates a provider for the given configuration
func NewProvider(cfg Config, factories Factories) *Provider {
	return &Provider{cfg: cfg, factories: factories}
}

// Session returns the execution context, creating it on the first call.
// Later calls return the same session.
func (p *Provider) Session(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.once.Do(func() {
		p.session = newSession(p.cfg, p.factories)
		logger.Info("Execution context created",
			zap.String("runID", p.cfg.RunID),
			zap.Int("readerConcurrency", p.session.cfg.ReaderConcurrency),
			zap.String("compression", p.session.cfg.Compression))
	})
	return p.session, nil
}

// Session resolves storage locations to stores and carries reader and writer settings
type Session struct {
	cfg       Config
	factories Factories

	mu      sync.Mutex
	stores  map[string]objectstore.Store
	closers []func() error
}

func newSession(cfg Config, factories Factories) *Session {
	if cfg.ReaderConcurrency <= 0 {
		cfg.ReaderConcurrency = 1
	}
	if cfg.ReaderMaxLineBytes <= 0 {
		cfg.ReaderMaxLineBytes = 1024 * 1024
	}
	if cfg.MaxRowsPerFile <= 0 {
		cfg.MaxRowsPerFile = 1_000_000
	}
	if factories.FileSystem == nil {
		factories.FileSystem = adapter.NewFileSystem()
	}
	if factories.JSON == nil {
		factories.JSON = adapter.NewJSON()
	}

	return &Session{
		cfg:       cfg,
		factories: factories,
		stores:    make(map[string]objectstore.Store),
	}
}

// RunID returns the identifier stamped into written file names
func (s *Session) RunID() string {
	return s.cfg.RunID
}

// Register installs a store for a backend, replacing any lazily built one
func (s *Session) Register(backend string, store objectstore.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[backend] = store
}

// Store returns the store serving a location, building its client on first use
func (s *Session) Store(ctx context.Context, loc objectstore.Location) (objectstore.Store, error) {
	backend := loc.Backend()

	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.stores[backend]; ok {
		return store, nil
	}

	var store objectstore.Store
	switch backend {
	case objectstore.BackendLocal:
		store = objectstore.NewLocalStore(s.factories.FileSystem)
	case objectstore.BackendS3:
		if s.factories.S3 == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedScheme, loc.Scheme)
		}
		client, err := s.factories.S3(ctx, s.cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
		store = objectstore.NewS3Store(ratelimit.NewS3Client(client, s.cfg.RequestRate))
		logger.Debug("Created S3 store", zap.String("region", s.cfg.AWS.Region), zap.String("endpoint", s.cfg.AWS.Endpoint))
	case objectstore.BackendGCS:
		if s.factories.GCS == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedScheme, loc.Scheme)
		}
		client, err := s.factories.GCS(ctx, s.cfg.GCSCredentialsFile, s.cfg.GCSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create gcs client: %w", err)
		}
		client = ratelimit.NewGCSClient(client, s.cfg.RequestRate)
		s.closers = append(s.closers, client.Close)
		store = objectstore.NewGCSStore(client)
		logger.Debug("Created GCS store", zap.String("endpoint", s.cfg.GCSEndpoint))
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedScheme, loc.Scheme)
	}

	s.stores[backend] = store
	return store, nil
}

// Close releases the storage clients
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
