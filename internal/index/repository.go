// Package index is the durable metadata store for uploaded medical files.
package index

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"medical-files-server/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("file record not found")

// Filter restricts a listing. Empty fields mean "no filter".
type Filter struct {
	PatientID string
	Category  models.Category
}

// Repository provides access to medical file records.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new medical file repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert records a committed upload. The id and upload time are assigned here
// when the caller left them empty.
func (r *Repository) Insert(ctx context.Context, file *models.MedicalFile) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

// List returns the records matching f, newest first, ties broken by id.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.MedicalFile, error) {
	q := r.db.WithContext(ctx).Model(&models.MedicalFile{})
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	files := make([]models.MedicalFile, 0)
	if err := q.Order("uploaded_at desc").Order("id asc").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}
	return files, nil
}

// Get retrieves a record by its id.
func (r *Repository) Get(ctx context.Context, id string) (*models.MedicalFile, error) {
	var file models.MedicalFile
	if err := r.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return &file, nil
}

// Delete removes a record by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.MedicalFile{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
