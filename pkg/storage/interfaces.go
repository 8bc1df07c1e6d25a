package storage

import (
	"context"
	"io"
)

// ObjectStore stores opaque blobs under string keys. Used for activity
// archives written before a retention purge.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content io.Reader, contentType string) error
	HealthCheck(ctx context.Context) error
}

// S3Config holds settings for an S3-compatible object store
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}
