package medfiles

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"medical-files-server/internal/config"
)

// Limits are the admission rules applied to every upload.
type Limits struct {
	AllowedExtensions []string
	MaxSizeBytes      int64
	MaxFilesPerBatch  int
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		AllowedExtensions: []string{"pdf", "jpg", "jpeg", "png", "gif", "doc", "docx", "txt"},
		MaxSizeBytes:      10 << 20,
		MaxFilesPerBatch:  5,
	}
}

// LimitsFromConfig extracts Limits from the upload configuration.
func LimitsFromConfig(cfg config.UploadConfig) Limits {
	return Limits{
		AllowedExtensions: cfg.AllowedExtensions,
		MaxSizeBytes:      cfg.MaxSizeBytes,
		MaxFilesPerBatch:  cfg.MaxFilesPerBatch,
	}
}

// FileDescriptor is what the validator knows about a candidate file.
// DeclaredType is carried for display and never used to accept a file.
type FileDescriptor struct {
	Name         string
	SizeBytes    int64
	DeclaredType string
}

// Extension returns the lower-cased suffix after the last dot, or "" when the
// name has none.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Validate applies the per-file rules in order; the first failure wins.
func Validate(f FileDescriptor, l Limits) error {
	if f.SizeBytes > l.MaxSizeBytes {
		return validationError(f.Name, ReasonSizeLimit,
			fmt.Sprintf("File size exceeds %s limit", humanize.IBytes(uint64(l.MaxSizeBytes))))
	}

	ext := Extension(f.Name)
	if ext == "" || !l.allows(ext) {
		return validationError(f.Name, ReasonTypeNotAllowed,
			fmt.Sprintf("File type not allowed. Allowed types: %s", strings.Join(l.AllowedExtensions, ", ")))
	}

	return nil
}

// CheckBatch reports whether one more file may join a batch that has already
// admitted the given number of files.
func CheckBatch(admitted int, l Limits) error {
	if admitted+1 > l.MaxFilesPerBatch {
		return validationError("", ReasonBatchLimit,
			fmt.Sprintf("Maximum %d files allowed per upload", l.MaxFilesPerBatch))
	}
	return nil
}

func (l Limits) allows(ext string) bool {
	for _, allowed := range l.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}
