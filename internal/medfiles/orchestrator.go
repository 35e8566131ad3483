package medfiles

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"medical-files-server/internal/config"
	"medical-files-server/internal/index"
	"medical-files-server/internal/logging"
	"medical-files-server/internal/models"
	"medical-files-server/internal/storage"
)

const defaultCleanupTimeout = 10 * time.Second

// Indexer records committed uploads and removes records whose upload was
// reported as failed.
type Indexer interface {
	Insert(ctx context.Context, file *models.MedicalFile) error
	Delete(ctx context.Context, id string) error
}

// FileBlob is one file submitted for upload.
type FileBlob struct {
	Name        string
	ContentType string
	Data        []byte
	// CategoryHint overrides name-based categorization when it names a valid category.
	CategoryHint string
}

// Outcome is the terminal result of one file in a batch.
type Outcome struct {
	TaskID        string
	FileName      string
	State         TaskState
	Record        *models.MedicalFile
	Err           *UploadError
	CleanupFailed bool
}

// Succeeded reports whether the file was stored and indexed.
func (o Outcome) Succeeded() bool {
	return o.State.Status == StatusSucceeded
}

// Options tune the orchestrator.
type Options struct {
	Limits Limits
	// Parallelism bounds concurrent uploads within a batch; <= 0 means the whole batch.
	Parallelism int
	// FileTimeout bounds the store and index steps of a single file.
	FileTimeout time.Duration
	// CleanupTimeout bounds each compensating delete.
	CleanupTimeout time.Duration
}

// OptionsFromConfig builds Options from the upload configuration.
func OptionsFromConfig(cfg config.UploadConfig) Options {
	return Options{
		Limits:      LimitsFromConfig(cfg),
		Parallelism: cfg.Parallelism,
		FileTimeout: cfg.FileTimeout,
	}
}

// Orchestrator runs batches of uploads against a storage backend and an index.
type Orchestrator struct {
	store  storage.Backend
	index  Indexer
	opts   Options
	logger *logging.Logger
}

func NewOrchestrator(store storage.Backend, index Indexer, opts Options, logger *logging.Logger) *Orchestrator {
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = defaultCleanupTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{store: store, index: index, opts: opts, logger: logger}
}

// Batch is a prepared set of upload tasks for one patient.
type Batch struct {
	o           *Orchestrator
	patientID   string
	patientName string
	tasks       *TaskList
	blobs       map[string]FileBlob
}

// Prepare applies the batch limit and the validator to files in order and
// returns a batch whose tasks are Pending or already Failed.
func (o *Orchestrator) Prepare(patientID, patientName string, files []FileBlob) *Batch {
	b := &Batch{
		o:           o,
		patientID:   patientID,
		patientName: patientName,
		tasks:       NewTaskList(),
		blobs:       make(map[string]FileBlob, len(files)),
	}

	admitted := 0
	var overflow *UploadError
	for _, f := range files {
		task := newTask(f.Name)

		var err error
		if overflow == nil {
			if err = CheckBatch(admitted, o.opts.Limits); err != nil {
				errors.As(err, &overflow)
			}
		}
		if overflow != nil {
			err = validationError(f.Name, overflow.Reason, overflow.Detail)
		} else {
			err = Validate(FileDescriptor{Name: f.Name, SizeBytes: int64(len(f.Data)), DeclaredType: f.ContentType}, o.opts.Limits)
		}

		var uerr *UploadError
		if errors.As(err, &uerr) {
			task.State = Failed(uerr.Reason)
			task.Err = uerr
			o.logger.Debug("file rejected", "file", f.Name, "reason", uerr.Reason)
		} else {
			admitted++
			b.blobs[task.ID] = f
		}
		b.tasks.Add(task)
	}

	return b
}

// Tasks returns a snapshot of the batch's tasks.
func (b *Batch) Tasks() []UploadTask {
	return b.tasks.Snapshot()
}

// Cancel removes a task that has not started. In-flight tasks run to completion.
func (b *Batch) Cancel(taskID string) error {
	return b.tasks.Remove(taskID)
}

// Run uploads every Pending task concurrently and returns once all remaining
// tasks are terminal. Outcomes follow task order, but callers should key
// them by TaskID or FileName.
func (b *Batch) Run(ctx context.Context) []Outcome {
	var pending []string
	for _, t := range b.tasks.Snapshot() {
		if t.State.Status == StatusPending {
			pending = append(pending, t.ID)
		}
	}

	if len(pending) > 0 {
		limit := b.o.opts.Parallelism
		if limit <= 0 || limit > len(pending) {
			limit = len(pending)
		}

		var g errgroup.Group
		g.SetLimit(limit)
		for _, id := range pending {
			g.Go(func() error {
				b.runTask(ctx, id)
				return nil
			})
		}
		_ = g.Wait()
	}

	snapshot := b.tasks.Snapshot()
	outcomes := make([]Outcome, 0, len(snapshot))
	for _, t := range snapshot {
		if !t.State.Terminal() {
			continue
		}
		outcomes = append(outcomes, Outcome{
			TaskID:        t.ID,
			FileName:      t.FileName,
			State:         t.State,
			Record:        t.Record,
			Err:           t.Err,
			CleanupFailed: t.CleanupFailed,
		})
	}
	return outcomes
}

// UploadBatch prepares and runs a batch in one call.
func (o *Orchestrator) UploadBatch(ctx context.Context, patientID, patientName string, files []FileBlob) []Outcome {
	return o.Prepare(patientID, patientName, files).Run(ctx)
}

func (b *Batch) runTask(ctx context.Context, id string) {
	task, err := b.tasks.Transition(id, InFlight(), nil)
	if err != nil {
		// cancelled before it started
		return
	}
	blob := b.blobs[id]
	logger := b.o.logger.With("task", id, "file", task.FileName, "patient_id", b.patientID)

	record, cleanupFailed, uerr := b.o.process(ctx, logger, b.patientID, b.patientName, blob)
	if uerr != nil {
		logger.Warn("upload failed", "reason", uerr.Reason, "err", uerr.Err)
		if _, err := b.tasks.Transition(id, Failed(uerr.Reason), func(t *UploadTask) {
			t.Err = uerr
			t.CleanupFailed = cleanupFailed
		}); err != nil {
			logger.Error("failed to record task failure", "err", err)
		}
		return
	}

	logger.Info("upload committed", "id", record.ID, "category", record.Category, "size", record.FileSizeBytes)
	if _, err := b.tasks.Transition(id, Succeeded(), func(t *UploadTask) {
		t.Record = record
	}); err != nil {
		logger.Error("failed to record task success", "err", err)
	}
}

type pipelineResult struct {
	record        *models.MedicalFile
	cleanupFailed bool
	err           *UploadError
}

// process runs the store and index steps under the per-file timeout. It
// returns when the pipeline finishes or the deadline passes, whichever is first.
func (o *Orchestrator) process(ctx context.Context, logger *logging.Logger, patientID, patientName string, blob FileBlob) (*models.MedicalFile, bool, *UploadError) {
	if o.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.FileTimeout)
		defer cancel()
	}

	done := make(chan pipelineResult, 1)
	go func() {
		done <- o.pipeline(ctx, logger, patientID, patientName, blob)
	}()

	select {
	case res := <-done:
		return res.record, res.cleanupFailed, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.record, res.cleanupFailed, res.err
		default:
		}
		go o.revertLate(ctx, logger, done)
		return nil, false, &UploadError{Kind: KindTimeout, FileName: blob.Name, Reason: ReasonTimeout, Err: ctx.Err()}
	}
}

func (o *Orchestrator) pipeline(ctx context.Context, logger *logging.Logger, patientID, patientName string, blob FileBlob) pipelineResult {
	category := Categorize(blob.Name, blob.CategoryHint)
	key := storage.Key(patientID, blob.Name)

	loc, err := o.store.Put(ctx, key, blob.Data, blob.ContentType)
	if err != nil {
		// the backend may have written before failing
		cleanupFailed := !o.compensate(ctx, logger, key)
		if isContextError(err) {
			return pipelineResult{cleanupFailed: cleanupFailed, err: &UploadError{Kind: KindTimeout, FileName: blob.Name, Reason: ReasonTimeout, Err: err}}
		}
		return pipelineResult{cleanupFailed: cleanupFailed, err: &UploadError{Kind: KindTransport, FileName: blob.Name, Reason: ReasonStorageFailed, Err: err}}
	}

	if loc.Size != int64(len(blob.Data)) {
		cleanupFailed := !o.compensate(ctx, logger, loc.Key)
		return pipelineResult{cleanupFailed: cleanupFailed, err: &UploadError{
			Kind:     KindTransport,
			FileName: blob.Name,
			Reason:   ReasonSizeMismatch,
			Detail:   "stored size does not match uploaded size",
		}}
	}

	if err := ctx.Err(); err != nil {
		cleanupFailed := !o.compensate(ctx, logger, loc.Key)
		return pipelineResult{cleanupFailed: cleanupFailed, err: &UploadError{Kind: KindTimeout, FileName: blob.Name, Reason: ReasonTimeout, Err: err}}
	}

	record := &models.MedicalFile{
		PatientID:     patientID,
		PatientName:   patientName,
		FileName:      blob.Name,
		FileType:      blob.ContentType,
		FileSizeBytes: loc.Size,
		Category:      category,
		StorageKey:    loc.Key,
	}
	if err := o.index.Insert(ctx, record); err != nil {
		cleanupFailed := !o.compensate(ctx, logger, loc.Key)
		if isContextError(err) {
			return pipelineResult{cleanupFailed: cleanupFailed, err: &UploadError{Kind: KindTimeout, FileName: blob.Name, Reason: ReasonTimeout, Err: err}}
		}
		return pipelineResult{cleanupFailed: cleanupFailed, err: &UploadError{Kind: KindIndex, FileName: blob.Name, Reason: ReasonIndexFailed, Err: err}}
	}

	return pipelineResult{record: record}
}

// compensate deletes an object that has no index record. It runs once with its
// own deadline, detached from the caller's cancellation, and reports success.
func (o *Orchestrator) compensate(ctx context.Context, logger *logging.Logger, key string) bool {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CleanupTimeout)
	defer cancel()

	if err := o.store.Delete(cctx, key); err != nil {
		logger.Error("compensating delete failed, object orphaned", "key", key, "err", err)
		return false
	}
	logger.Info("compensating delete succeeded", "key", key)
	return true
}

// revertLate waits for a pipeline abandoned at its deadline. A record it
// committed anyway is removed along with its object, since the caller was
// told the upload failed.
func (o *Orchestrator) revertLate(ctx context.Context, logger *logging.Logger, done <-chan pipelineResult) {
	res := <-done
	if res.record == nil {
		return
	}
	logger = logger.With("id", res.record.ID, "key", res.record.StorageKey)
	logger.Warn("upload committed after timeout, reverting")

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CleanupTimeout)
	defer cancel()

	if err := o.index.Delete(cctx, res.record.ID); err != nil && !errors.Is(err, index.ErrNotFound) {
		logger.Error("compensating record delete failed, record orphaned", "err", err)
		return
	}
	o.compensate(ctx, logger, res.record.StorageKey)
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
