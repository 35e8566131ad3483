package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// MedicalFile is the durable metadata record for one uploaded file.
// Its bytes live in the storage backend under StorageKey.
type MedicalFile struct {
	BaseModel
	PatientID     string    `gorm:"size:128;not null;index:idx_patient_category,priority:1" json:"patient_id"`
	PatientName   string    `gorm:"size:255;not null" json:"patient_name"`
	FileName      string    `gorm:"size:255;not null" json:"file_name"`
	FileType      string    `gorm:"size:255" json:"file_type"` // declared MIME type, display only
	FileSizeBytes int64     `gorm:"not null" json:"file_size"`
	Category      Category  `gorm:"size:32;not null;index:idx_patient_category,priority:2" json:"category"`
	StorageKey    string    `gorm:"size:512;not null;uniqueIndex" json:"-"`
	UploadedAt    time.Time `gorm:"not null;index" json:"uploaded_at"`

	DownloadURL string `gorm:"-" json:"download_url,omitempty"`
}

// BeforeCreate assigns the id and commit timestamp and rejects unknown categories.
func (f *MedicalFile) BeforeCreate(tx *gorm.DB) error {
	if !f.Category.Valid() {
		return ErrInvalidCategory
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	return f.BaseModel.BeforeCreate(tx)
}

// IsImage reports whether the file should be rendered with an image icon.
func (f *MedicalFile) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(f.FileType), "image/")
}
