package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-files-server/internal/models"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := models.InitDB(models.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	return NewRepository(db)
}

func newRecord(patient string, category models.Category, name string, at time.Time) *models.MedicalFile {
	return &models.MedicalFile{
		PatientID:     patient,
		PatientName:   "Patient " + patient,
		FileName:      name,
		FileType:      "application/pdf",
		FileSizeBytes: 128,
		Category:      category,
		StorageKey:    "patients/" + patient + "/" + name + "/" + at.Format(time.RFC3339Nano),
		UploadedAt:    at,
	}
}

func TestRepository_InsertAndListRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec := newRecord("p1", models.CategoryLabResults, "bloodwork.pdf", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.Insert(ctx, rec))
	require.NotEmpty(t, rec.ID)

	files, err := repo.List(ctx, Filter{PatientID: "p1", Category: models.CategoryLabResults})
	require.NoError(t, err)
	require.Len(t, files, 1)

	got := files[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.PatientID, got.PatientID)
	assert.Equal(t, rec.PatientName, got.PatientName)
	assert.Equal(t, rec.FileName, got.FileName)
	assert.Equal(t, rec.FileType, got.FileType)
	assert.Equal(t, rec.FileSizeBytes, got.FileSizeBytes)
	assert.Equal(t, rec.Category, got.Category)
	assert.Equal(t, rec.StorageKey, got.StorageKey)
	assert.True(t, rec.UploadedAt.Equal(got.UploadedAt))
}

func TestRepository_ListByCategoryNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, newRecord("p1", models.CategoryPrescription, "rx-old.pdf", base)))
	require.NoError(t, repo.Insert(ctx, newRecord("p1", models.CategoryPrescription, "rx-new.pdf", base.Add(time.Hour))))
	require.NoError(t, repo.Insert(ctx, newRecord("p1", models.CategoryOther, "misc.pdf", base.Add(2*time.Hour))))

	files, err := repo.List(ctx, Filter{Category: models.CategoryPrescription})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "rx-new.pdf", files[0].FileName)
	assert.Equal(t, "rx-old.pdf", files[1].FileName)
	for _, f := range files {
		assert.Equal(t, models.CategoryPrescription, f.Category)
	}
}

func TestRepository_ListFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, newRecord("p1", models.CategoryInsurance, "card.png", now)))
	require.NoError(t, repo.Insert(ctx, newRecord("p1", models.CategoryOther, "a.txt", now)))
	require.NoError(t, repo.Insert(ctx, newRecord("p2", models.CategoryInsurance, "coverage.pdf", now)))

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 3},
		{"patient only", Filter{PatientID: "p1"}, 2},
		{"category only", Filter{Category: models.CategoryInsurance}, 2},
		{"patient and category", Filter{PatientID: "p2", Category: models.CategoryInsurance}, 1},
		{"no match", Filter{PatientID: "p3"}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files, err := repo.List(ctx, tc.filter)
			require.NoError(t, err)
			assert.Len(t, files, tc.want)
			assert.NotNil(t, files)
		})
	}
}

func TestRepository_ListTieBreakByID(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{"c", "a", "b"} {
		rec := newRecord("p1", models.CategoryOther, id+".txt", at)
		rec.ID = id
		rec.StorageKey = "k-" + id
		require.NoError(t, repo.Insert(ctx, rec))
	}

	files, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, "b", files[1].ID)
	assert.Equal(t, "c", files[2].ID)
}

func TestRepository_GetAndDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec := newRecord("p1", models.CategoryMedicalRecords, "history.pdf", time.Now().UTC())
	require.NoError(t, repo.Insert(ctx, rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.StorageKey, got.StorageKey)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	assert.ErrorIs(t, repo.Delete(ctx, rec.ID), ErrNotFound)

	_, err = repo.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_InsertRejectsInvalidCategory(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.Insert(context.Background(), newRecord("p1", models.Category("bogus"), "x.pdf", time.Now()))
	assert.ErrorIs(t, err, models.ErrInvalidCategory)
}
