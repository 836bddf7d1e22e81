package blob

import (
	"context"
	"fmt"

	"gencon/internal/infra/blob/fs"
	"gencon/internal/infra/blob/memory"
	"gencon/internal/infra/blob/s3"
)

// S3Config re-exports the S3 backend configuration.
type S3Config = s3.Config

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	Root   string // filesystem root when Driver is fs
	S3     S3Config
}

// Open constructs the store named by cfg.Driver, defaulting to the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.Root)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
