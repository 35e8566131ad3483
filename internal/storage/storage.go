// Package storage persists medical file bytes in a durable blob store.
//
// Every Backend guarantees that a successful Put is immediately durable and
// readable, and that Delete of a missing key is not an error.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"medical-files-server/internal/config"
)

// ErrNotFound is returned by readers when the key holds no object.
var ErrNotFound = errors.New("object not found")

// Locator identifies persisted bytes.
type Locator struct {
	Key  string
	Size int64
}

// Backend is the blob store contract the upload pipeline depends on.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Locator, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeSegment strips path separators and anything outside a conservative
// character set so a caller-supplied string can be used as one key segment.
func sanitizeSegment(s string) string {
	clean := filepath.Base(filepath.Clean(strings.ReplaceAll(s, "\\", "/")))
	clean = unsafeSegment.ReplaceAllString(clean, "_")
	if clean == "." || clean == ".." || clean == "" || clean == "_" {
		return "unnamed"
	}
	return clean
}

// Key builds a fresh patient-scoped object key.
func Key(patientID, fileName string) string {
	return fmt.Sprintf("patients/%s/%s/%s", sanitizeSegment(patientID), uuid.New(), sanitizeSegment(fileName))
}

// New builds the backend selected by cfg. The returned close func releases any
// client the backend holds and is never nil.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "s3":
		b, err := NewS3(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, noop, err
		}
		return b, noop, nil
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCSCredentials)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gcs client: %w", err)
		}
		b, err := NewGCS(client, cfg.GCSBucket)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return b, b.Close, nil
	case "local", "":
		b, err := NewLocalDir(cfg.LocalRoot, cfg.SigningSecret, cfg.PublicBaseURL)
		if err != nil {
			return nil, noop, err
		}
		return b, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
