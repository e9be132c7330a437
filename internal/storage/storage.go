package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/classtask/taskmaster/backend/internal/config"
)

// BlobStore is the contract for file-submission storage. Upload returns
// the public URL the submission row will reference.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the blob store selected by config.
func New(ctx context.Context, cfg *config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL)
	case "b2":
		return NewB2Store(ctx, cfg.B2Account, cfg.B2Key, cfg.B2Bucket)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
