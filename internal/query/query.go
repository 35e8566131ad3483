// Package query composes free-text search and sorting over file listings.
package query

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"medical-files-server/internal/models"
)

// SortField selects the sort key.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByName     SortField = "name"
	SortByCategory SortField = "category"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Options describe a search and sort over a listing. Zero values mean no
// search and newest first.
type Options struct {
	Search      string
	PatientName string
	SortBy      SortField
	Order       Order
}

// Apply filters files by Search (file or patient name) and PatientName, then
// sorts them. Equal keys are ordered by id ascending. files is not modified.
func Apply(files []models.MedicalFile, opts Options) []models.MedicalFile {
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	patient := strings.ToLower(strings.TrimSpace(opts.PatientName))

	out := make([]models.MedicalFile, 0, len(files))
	for _, f := range files {
		if search != "" &&
			!strings.Contains(strings.ToLower(f.FileName), search) &&
			!strings.Contains(strings.ToLower(f.PatientName), search) {
			continue
		}
		if patient != "" && !strings.Contains(strings.ToLower(f.PatientName), patient) {
			continue
		}
		out = append(out, f)
	}

	cmp := comparator(opts.SortBy)
	desc := opts.Order != Asc

	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(&out[i], &out[j])
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func comparator(field SortField) func(a, b *models.MedicalFile) int {
	switch field {
	case SortByName:
		col := collate.New(language.Und)
		return func(a, b *models.MedicalFile) int {
			return col.CompareString(a.FileName, b.FileName)
		}
	case SortByCategory:
		return func(a, b *models.MedicalFile) int {
			return strings.Compare(string(a.Category), string(b.Category))
		}
	default:
		return func(a, b *models.MedicalFile) int {
			return a.UploadedAt.Compare(b.UploadedAt)
		}
	}
}
