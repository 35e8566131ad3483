package medfiles

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medical-files-server/internal/index"
	"medical-files-server/internal/models"
	"medical-files-server/internal/storage"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory storage.Backend with failure injection.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deletes   []string
	inflight  int
	maxFlight int

	// failPut makes Put fail for file names containing this substring.
	failPut   string
	deleteErr error
	truncate  bool
	delay     time.Duration
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (storage.Locator, error) {
	m.mu.Lock()
	m.inflight++
	if m.inflight > m.maxFlight {
		m.maxFlight = m.inflight
	}
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPut != "" && strings.Contains(key, m.failPut) {
		return storage.Locator{}, errInjected
	}
	stored := append([]byte(nil), data...)
	if m.truncate && len(stored) > 0 {
		stored = stored[:len(stored)-1]
	}
	m.objects[key] = stored
	return storage.Locator{Key: key, Size: int64(len(stored))}, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes = append(m.deletes, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "mem://" + key, nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memStore) deleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deletes)
}

// failingIndex fails every Insert.
type failingIndex struct {
	*index.Repository
}

func (f failingIndex) Insert(ctx context.Context, file *models.MedicalFile) error {
	return errInjected
}

// lateIndex commits every Insert after delay, ignoring the caller's deadline.
type lateIndex struct {
	*index.Repository
	delay time.Duration
}

func (l lateIndex) Insert(ctx context.Context, file *models.MedicalFile) error {
	time.Sleep(l.delay)
	return l.Repository.Insert(context.WithoutCancel(ctx), file)
}

func newTestRepo(t *testing.T) *index.Repository {
	t.Helper()

	db, err := models.InitDB(models.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	return index.NewRepository(db)
}

func testOptions() Options {
	return Options{
		Limits:      DefaultLimits(),
		FileTimeout: 5 * time.Second,
	}
}

func newTestService(t *testing.T, store storage.Backend) (*Service, *index.Repository) {
	t.Helper()

	repo := newTestRepo(t)
	return NewService(store, repo, testOptions(), 15*time.Minute, nil), repo
}

func blob(name string, size int) FileBlob {
	return FileBlob{Name: name, ContentType: "application/octet-stream", Data: make([]byte, size)}
}

func byName(outcomes []Outcome) map[string]Outcome {
	m := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		m[o.FileName] = o
	}
	return m
}

const mib = 1 << 20
