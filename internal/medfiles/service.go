package medfiles

import (
	"context"
	"errors"
	"time"

	"medical-files-server/internal/index"
	"medical-files-server/internal/logging"
	"medical-files-server/internal/models"
	"medical-files-server/internal/query"
	"medical-files-server/internal/storage"
)

// Index is the metadata store the service reads and writes.
type Index interface {
	Indexer
	List(ctx context.Context, f index.Filter) ([]models.MedicalFile, error)
	Get(ctx context.Context, id string) (*models.MedicalFile, error)
}

// Service is the entry point for uploading, listing, downloading and
// deleting medical files.
type Service struct {
	*Orchestrator

	store  storage.Backend
	index  Index
	urlTTL time.Duration
	logger *logging.Logger
}

func NewService(store storage.Backend, idx Index, opts Options, urlTTL time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		Orchestrator: NewOrchestrator(store, idx, opts, logger),
		store:        store,
		index:        idx,
		urlTTL:       urlTTL,
		logger:       logger,
	}
}

// Limits returns the admission limits uploads are checked against.
func (s *Service) Limits() Limits {
	return s.opts.Limits
}

// List returns the records matching f after search and sort are applied.
// Each record carries a signed download URL.
func (s *Service) List(ctx context.Context, f index.Filter, opts query.Options) ([]models.MedicalFile, error) {
	files, err := s.index.List(ctx, f)
	if err != nil {
		return nil, &UploadError{Kind: KindIndex, Reason: ReasonIndexFailed, Err: err}
	}

	files = query.Apply(files, opts)
	for i := range files {
		s.Sign(ctx, &files[i])
	}
	return files, nil
}

// Get returns one record with a signed download URL.
func (s *Service) Get(ctx context.Context, id string) (*models.MedicalFile, error) {
	file, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	s.Sign(ctx, file)
	return file, nil
}

// DownloadURL returns a signed URL for the bytes of the record with id.
func (s *Service) DownloadURL(ctx context.Context, id string) (string, error) {
	file, err := s.index.Get(ctx, id)
	if err != nil {
		return "", lookupError(err)
	}

	url, err := s.store.SignedURL(ctx, file.StorageKey, s.urlTTL)
	if err != nil {
		return "", &UploadError{Kind: KindTransport, FileName: file.FileName, Reason: ReasonStorageFailed, Err: err}
	}
	return url, nil
}

// Delete removes the bytes then the record for id. Unknown ids report
// deleted=false without error. When the storage delete fails the record is
// kept so the delete can be retried.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	file, err := s.index.Get(ctx, id)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return false, nil
		}
		return false, &UploadError{Kind: KindIndex, Reason: ReasonIndexFailed, Err: err}
	}

	logger := s.logger.With("id", id, "key", file.StorageKey)

	if err := s.store.Delete(ctx, file.StorageKey); err != nil {
		logger.Error("storage delete failed, keeping record", "err", err)
		return false, &UploadError{Kind: KindTransport, FileName: file.FileName, Reason: ReasonStorageFailed, Err: err}
	}

	if err := s.index.Delete(ctx, id); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			// a concurrent delete got there first
			return false, nil
		}
		logger.Error("record delete failed after storage delete", "err", err)
		return false, &UploadError{Kind: KindIndex, FileName: file.FileName, Reason: ReasonIndexFailed, Err: err}
	}

	logger.Info("file deleted")
	return true, nil
}

// Sign attaches a signed download URL to file. Signing failures are logged
// and leave the URL empty.
func (s *Service) Sign(ctx context.Context, file *models.MedicalFile) {
	url, err := s.store.SignedURL(ctx, file.StorageKey, s.urlTTL)
	if err != nil {
		s.logger.Warn("failed to sign download url", "id", file.ID, "err", err)
		return
	}
	file.DownloadURL = url
}

func lookupError(err error) error {
	if errors.Is(err, index.ErrNotFound) {
		return &UploadError{Kind: KindNotFound, Reason: ReasonNotFound, Err: err}
	}
	return &UploadError{Kind: KindIndex, Reason: ReasonIndexFailed, Err: err}
}
