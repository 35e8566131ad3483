package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const attrsAttempts = 3

// attrsRetryDelay spaces out attribute reads of a freshly written object.
var attrsRetryDelay = 200 * time.Millisecond

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCSClient builds a client from a credentials file, falling back to
// Application Default Credentials when the path is empty.
func NewGCSClient(ctx context.Context, credentialsFile string) (*gcs.Client, error) {
	if credentialsFile != "" {
		return gcs.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	}
	return gcs.NewClient(ctx)
}

// NewGCS returns a backend writing to bucket.
func NewGCS(client *gcs.Client, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("missing gcs bucket")
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) (Locator, error) {
	obj := g.client.Bucket(g.bucket).Object(key)

	w := obj.NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Locator{}, fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return Locator{}, fmt.Errorf("failed to commit object: %w", err)
	}

	// fetch attributes so the caller can verify what landed
	var attrs *gcs.ObjectAttrs
	var err error
	for attempt := 1; ; attempt++ {
		attrs, err = obj.Attrs(ctx)
		if err == nil || attempt == attrsAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Locator{}, fmt.Errorf("failed to read object attributes: %w", ctx.Err())
		case <-time.After(attrsRetryDelay):
		}
	}
	if err != nil {
		return Locator{}, fmt.Errorf("failed to read object attributes: %w", err)
	}

	return Locator{Key: key, Size: attrs.Size}, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (g *GCS) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := g.client.Bucket(g.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign object url: %w", err)
	}
	return url, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
