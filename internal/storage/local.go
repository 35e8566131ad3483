package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"medical-files-server/internal/utils"
)

// DownloadPath is the route prefix that serves locally stored files by token.
const DownloadPath = "/api/v1/files/download/"

// Local stores objects on an afero filesystem. Writes go to a temp file in the
// destination directory and are renamed into place once fully flushed.
type Local struct {
	fs      afero.Fs
	secret  string
	baseURL string
}

// NewLocal returns a backend over fs. Signed URLs point at baseURL.
func NewLocal(fs afero.Fs, secret, baseURL string) *Local {
	return &Local{
		fs:      fs,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewLocalDir returns a backend rooted at dir on the host filesystem.
func NewLocalDir(dir, secret, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return NewLocal(afero.NewBasePathFs(afero.NewOsFs(), dir), secret, baseURL), nil
}

func (l *Local) Put(ctx context.Context, key string, data []byte, contentType string) (Locator, error) {
	if err := ctx.Err(); err != nil {
		return Locator{}, err
	}

	name := filepath.FromSlash(key)
	dir := filepath.Dir(name)
	if err := l.fs.MkdirAll(dir, 0o750); err != nil {
		return Locator{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(l.fs, dir, ".upload-*")
	if err != nil {
		return Locator{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		l.fs.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		l.fs.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to flush object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		l.fs.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to close object: %w", err)
	}
	if err := l.fs.Rename(tmpName, name); err != nil {
		l.fs.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to commit object: %w", err)
	}

	info, err := l.fs.Stat(name)
	if err != nil {
		return Locator{}, fmt.Errorf("failed to stat object: %w", err)
	}
	return Locator{Key: key, Size: info.Size()}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.FromSlash(key)
	if err := l.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	// each upload gets its own directory; drop it once empty
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}
	if entries, err := afero.ReadDir(l.fs, dir); err == nil && len(entries) == 0 {
		if err := l.fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove object directory: %w", err)
		}
	}
	return nil
}

// Open returns a reader for the object stored under key.
func (l *Local) Open(ctx context.Context, key string) (io.ReadSeekCloser, os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	f, err := l.fs.Open(filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return f, info, nil
}

// SignedURL returns a link to the download route carrying a token that
// expires after ttl.
func (l *Local) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token, err := utils.GenerateDownloadToken(key, ttl, l.secret)
	if err != nil {
		return "", err
	}
	return l.baseURL + DownloadPath + token, nil
}

// ResolveToken validates a download token and returns the key it grants.
func (l *Local) ResolveToken(token string) (string, error) {
	claims, err := utils.ValidateDownloadToken(token, l.secret)
	if err != nil {
		return "", err
	}
	return claims.StorageKey, nil
}
