package blob

import (
	"context"
	"fmt"

	"coopquality/internal/infra/blob/fs"
	memorystore "coopquality/internal/infra/blob/memory"
	infraS3 "coopquality/internal/infra/blob/s3"
)

// S3Config re-exports the bucket settings for configuration loaders.
type S3Config = infraS3.Config

// Config selects and configures an evidence backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the Store described by cfg. An empty driver means filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown evidence driver %q", cfg.Driver)
	}
}

// NewFilesystem stores evidence under root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 stores evidence in the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests exposes the fake bucket to tests in other packages.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
