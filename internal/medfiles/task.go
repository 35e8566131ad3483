package medfiles

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"medical-files-server/internal/models"
)

// TaskStatus is the tag of a TaskState.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusInFlight
	StatusSucceeded
	StatusFailed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in_flight"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// TaskState is the state of one UploadTask. Reason is set only for Failed.
type TaskState struct {
	Status TaskStatus
	Reason string
}

func Pending() TaskState { return TaskState{Status: StatusPending} }
func InFlight() TaskState { return TaskState{Status: StatusInFlight} }
func Succeeded() TaskState { return TaskState{Status: StatusSucceeded} }
func Failed(reason string) TaskState { return TaskState{Status: StatusFailed, Reason: reason} }

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

func (s TaskState) String() string {
	if s.Status == StatusFailed {
		return fmt.Sprintf("failed(%s)", s.Reason)
	}
	return s.Status.String()
}

// CanTransition reports whether s may move to next.
func (s TaskState) CanTransition(next TaskState) bool {
	switch s.Status {
	case StatusPending:
		return next.Status == StatusInFlight || next.Status == StatusFailed
	case StatusInFlight:
		return next.Status == StatusSucceeded || next.Status == StatusFailed
	default:
		return false
	}
}

// UploadTask tracks one file through a batch.
type UploadTask struct {
	ID       string
	FileName string
	State    TaskState
	// Record is the committed index record once Succeeded.
	Record *models.MedicalFile
	// Err explains a Failed state.
	Err *UploadError
	// CleanupFailed is set when a compensating storage delete did not succeed.
	CleanupFailed bool
}

func newTask(fileName string) UploadTask {
	return UploadTask{ID: uuid.New().String(), FileName: fileName, State: Pending()}
}

// TaskList holds the tasks of one batch. Tasks are stored by value and
// replaced whole under the lock, so readers never observe a partial update.
type TaskList struct {
	mu    sync.Mutex
	order []string
	tasks map[string]UploadTask
}

func NewTaskList() *TaskList {
	return &TaskList{tasks: make(map[string]UploadTask)}
}

// Add appends t to the list.
func (l *TaskList) Add(t UploadTask) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.tasks[t.ID]; !exists {
		l.order = append(l.order, t.ID)
	}
	l.tasks[t.ID] = t
}

// Get returns a copy of the task with the given id.
func (l *TaskList) Get(id string) (UploadTask, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	return t, ok
}

// Transition moves a task to next. apply, when non-nil, edits a copy of the
// task before the copy replaces the stored value.
func (l *TaskList) Transition(id string, next TaskState, apply func(*UploadTask)) (UploadTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	if !ok {
		return UploadTask{}, ErrTaskNotFound
	}
	if !t.State.CanTransition(next) {
		return t, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, t.State, next)
	}

	t.State = next
	if apply != nil {
		apply(&t)
	}
	l.tasks[id] = t
	return t, nil
}

// Remove drops a task that has not started yet.
func (l *TaskList) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.State.Status != StatusPending {
		return fmt.Errorf("%w: task %s is %s", ErrTaskNotCancellable, id, t.State)
	}

	delete(l.tasks, id)
	for i, existing := range l.order {
		if existing == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// Snapshot returns copies of all tasks in insertion order.
func (l *TaskList) Snapshot() []UploadTask {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]UploadTask, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.tasks[id])
	}
	return out
}

// Len returns the number of tasks.
func (l *TaskList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
