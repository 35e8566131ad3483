package medfiles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-files-server/internal/index"
	"medical-files-server/internal/models"
	"medical-files-server/internal/query"
)

func uploadOne(t *testing.T, svc *Service, name string) *models.MedicalFile {
	t.Helper()

	outcomes := svc.UploadBatch(context.Background(), "p1", "Pat", []FileBlob{blob(name, 16)})
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Succeeded(), "%+v", outcomes[0].Err)
	return outcomes[0].Record
}

func TestService_DeleteIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	rec := uploadOne(t, svc, "bloodwork.pdf")
	require.True(t, store.has(rec.StorageKey))

	deleted, err := svc.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, store.has(rec.StorageKey))

	deleted, err = svc.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = svc.Get(ctx, rec.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestService_DeleteKeepsRecordWhenStorageFails(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	rec := uploadOne(t, svc, "history.pdf")
	store.deleteErr = errInjected

	deleted, err := svc.Delete(ctx, rec.ID)
	assert.False(t, deleted)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.ErrorIs(t, err, errInjected)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, store.has(rec.StorageKey))

	// retry succeeds once storage recovers
	store.deleteErr = nil
	deleted, err = svc.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestService_ListByCategoryNewestFirst(t *testing.T) {
	store := newMemStore()
	svc, repo := newTestService(t, store)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		name     string
		category models.Category
	}{
		{"rx-january.pdf", models.CategoryPrescription},
		{"rx-february.pdf", models.CategoryPrescription},
		{"notes.txt", models.CategoryOther},
	} {
		require.NoError(t, repo.Insert(ctx, &models.MedicalFile{
			PatientID:     "p1",
			PatientName:   "Pat",
			FileName:      tc.name,
			FileSizeBytes: 1,
			Category:      tc.category,
			StorageKey:    "patients/p1/" + tc.name,
			UploadedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	files, err := svc.List(ctx, index.Filter{Category: models.CategoryPrescription}, query.Options{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "rx-february.pdf", files[0].FileName)
	assert.Equal(t, "rx-january.pdf", files[1].FileName)
	for _, f := range files {
		assert.Equal(t, models.CategoryPrescription, f.Category)
		assert.Equal(t, "mem://"+f.StorageKey, f.DownloadURL)
	}
}

func TestService_ListAppliesSearchAndSort(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()

	uploadOne(t, svc, "bloodwork.pdf")
	uploadOne(t, svc, "insurance_card.png")
	uploadOne(t, svc, "allergy.txt")

	files, err := svc.List(ctx, index.Filter{PatientID: "p1"}, query.Options{SortBy: query.SortByName, Order: query.Asc})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "allergy.txt", files[0].FileName)
	assert.Equal(t, "bloodwork.pdf", files[1].FileName)

	files, err = svc.List(ctx, index.Filter{}, query.Options{Search: "CARD"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "insurance_card.png", files[0].FileName)
}

func TestService_DownloadURL(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()

	rec := uploadOne(t, svc, "scan.png")

	url, err := svc.DownloadURL(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "mem://"+rec.StorageKey, url)

	_, err = svc.DownloadURL(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}
