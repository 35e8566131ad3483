package cmd

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"medical-files-server/internal/index"
	"medical-files-server/internal/medfiles"
	"medical-files-server/internal/models"
	"medical-files-server/internal/storage"
)

// runtime is the wired service stack shared by the server and the CLI commands.
type runtime struct {
	db      *gorm.DB
	service *medfiles.Service
	// local is set only for the local backend; it serves token downloads.
	local        *storage.Local
	closeStorage func() error
}

func (a *app) bootstrap(ctx context.Context) (*runtime, error) {
	a.logger.Debug("connecting to database", "driver", a.cfg.Database.Driver, "dsn", a.cfg.Database.MaskedDSN())

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: a.cfg.Database.Driver,
		DSN:    a.cfg.Database.DSN,
		Logger: a.logger.With("component", "gorm"),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	backend, closeStorage, err := storage.New(ctx, a.cfg.Storage)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("initializing %s storage: %w", a.cfg.Storage.Backend, err)
	}

	local, _ := backend.(*storage.Local)
	svc := medfiles.NewService(
		backend,
		index.NewRepository(db),
		medfiles.OptionsFromConfig(a.cfg.Upload),
		a.cfg.Storage.SignedURLTTL,
		a.logger.With("component", "medfiles"),
	)

	return &runtime{db: db, service: svc, local: local, closeStorage: closeStorage}, nil
}

// Close releases the storage client and the database pool.
func (r *runtime) Close() error {
	var errs []error
	if err := r.closeStorage(); err != nil {
		errs = append(errs, fmt.Errorf("closing storage: %w", err))
	}
	if sqlDB, err := r.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
