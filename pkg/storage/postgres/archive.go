package postgres

import (
	"context"

	"github.com/platinummonkey/spendwise/pkg/storage"
)

// ArchiveConfig selects where purged activity rows are written
type ArchiveConfig struct {
	S3  storage.S3Config
	Dir string
}

// OpenArchiveStore returns an S3 store when a bucket is configured, a
// filesystem store when only Dir is set, and nil when archiving is off.
func OpenArchiveStore(ctx context.Context, cfg ArchiveConfig) (storage.ObjectStore, error) {
	switch {
	case cfg.S3.Bucket != "":
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return client, nil
	case cfg.Dir != "":
		fs, err := storage.NewFileSystemStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	return nil, nil
}
