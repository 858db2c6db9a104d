// Package core defines the storage contract shared by evidence backends.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete evidence storage backend.
type Driver string

const (
	// DriverFilesystem stores evidence under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores evidence in an S3 or MinIO bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps evidence in process memory.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional attributes for a new object.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures a temporary download link.
type SignedURLOptions struct {
	Method string
	Expiry time.Duration
}

// Info describes a stored evidence object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the write-once object store used for inspection evidence
// (photos, lab reports, signed sheets).
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned when a backend lacks an optional capability.
	ErrUnsupported = errors.New("evidence store: unsupported operation")
	// ErrExists is returned when a key is written twice.
	ErrExists = errors.New("evidence store: object already exists")
	// ErrNotFound is returned when a key has no object.
	ErrNotFound = errors.New("evidence store: object not found")
	// ErrInvalidKey is returned for empty or escaping keys.
	ErrInvalidKey = errors.New("evidence store: invalid key")
)

// CloneMetadata copies user metadata so callers cannot alias stored maps.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
