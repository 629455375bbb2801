// Package storage keeps alert audio recordings on the local filesystem or in
// an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silentsos/silentsos/internal/config"
)

var ErrInvalidKey = errors.New("invalid storage key")

// AudioStore persists audio blobs under opaque keys.
type AudioStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns where a client can download the blob.
	URL(ctx context.Context, key string) (string, error)
}

// NewAudioKey returns a fresh key of the form alerts/audio/yyyy/m/d/<uuid><ext>.
func NewAudioKey(now time.Time, ext string) string {
	return fmt.Sprintf("alerts/audio/%d/%d/%d/%v%s", now.Year(), now.Month(), now.Day(), uuid.New(), strings.ToLower(ext))
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (AudioStore, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalStore(cfg.MediaRoot, cfg.MediaURL)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
