package ratelimit

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/sparkify/datalake-etl/internal/adapter"
)

// Config holds the request rate applied to one storage backend
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Enabled reports whether requests are limited at all
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

func (c Config) limiter() *rate.Limiter {
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// s3Client throttles every S3 API request, so each page of a paginated
// listing and each delete batch takes its own token
type s3Client struct {
	inner   adapter.S3Client
	limiter *rate.Limiter
}

// NewS3Client wraps inner so that requests are issued at most at the configured rate.
// A disabled config returns inner unchanged.
func NewS3Client(inner adapter.S3Client, cfg Config) adapter.S3Client {
	if !cfg.Enabled() {
		return inner
	}
	return &s3Client{inner: inner, limiter: cfg.limiter()}
}

func (c *s3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}
	return c.inner.ListObjectsV2(ctx, params, optFns...)
}

func (c *s3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}
	return c.inner.GetObject(ctx, params, optFns...)
}

func (c *s3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}
	return c.inner.PutObject(ctx, params, optFns...)
}

func (c *s3Client) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}
	return c.inner.DeleteObjects(ctx, params, optFns...)
}

// gcsClient throttles Cloud Storage calls. ListObjects pages inside the
// client iterator, so a listing takes one token however many pages it spans.
type gcsClient struct {
	inner   adapter.GCSClient
	limiter *rate.Limiter
}

// NewGCSClient wraps inner so that requests are issued at most at the configured rate.
// A disabled config returns inner unchanged.
func NewGCSClient(inner adapter.GCSClient, cfg Config) adapter.GCSClient {
	if !cfg.Enabled() {
		return inner
	}
	return &gcsClient{inner: inner, limiter: cfg.limiter()}
}

func (c *gcsClient) ListObjects(ctx context.Context, bucket, prefix string) ([]adapter.GCSObject, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}
	return c.inner.ListObjects(ctx, bucket, prefix)
}

func (c *gcsClient) ReadObject(ctx context.Context, bucket, name string) ([]byte, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}
	return c.inner.ReadObject(ctx, bucket, name)
}

func (c *gcsClient) WriteObject(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	if err := wait(ctx, c.limiter); err != nil {
		return err
	}
	return c.inner.WriteObject(ctx, bucket, name, data, contentType)
}

func (c *gcsClient) DeleteObject(ctx context.Context, bucket, name string) error {
	if err := wait(ctx, c.limiter); err != nil {
		return err
	}
	return c.inner.DeleteObject(ctx, bucket, name)
}

func (c *gcsClient) Close() error {
	return c.inner.Close()
}
