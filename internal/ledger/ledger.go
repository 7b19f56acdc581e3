// Package ledger tracks the lifecycle of each resolved media task.
// The machine is pending -> downloading -> [merging] -> success, with
// failed reachable from any non-terminal state. Terminal records are
// immutable; retries create a new task with a fresh identity instead
// of reopening an old record, keeping one audit trail per attempt.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is a task lifecycle state.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateMerging     State = "merging"
	StateSuccess     State = "success"
	StateFailed      State = "failed"
)

// Terminal reports whether the state ends the task's lifecycle.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

var (
	// ErrUnknownTask indicates a task ID with no ledger record.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidTransition indicates a state change the machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// No transition skips downloading; merging only follows downloading.
var transitions = map[State][]State{
	StatePending:     {StateDownloading, StateFailed},
	StateDownloading: {StateMerging, StateSuccess, StateFailed},
	StateMerging:     {StateSuccess, StateFailed},
}

// Snapshot is a point-in-time copy of a task's status record.
type Snapshot struct {
	TaskID     string              `json:"task_id"`
	State      State               `json:"state"`
	Error      string              `json:"error,omitempty"`
	Timestamps map[State]time.Time `json:"timestamps"`
}

type record struct {
	state      State
	errMsg     string
	timestamps map[State]time.Time
}

// Ledger is the in-process status store. Safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]*record
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{records: make(map[string]*record)}
}

// Create registers a task in the pending state.
func (l *Ledger) Create(taskID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[taskID]; ok {
		return fmt.Errorf("task %s already registered", taskID)
	}
	l.records[taskID] = &record{
		state:      StatePending,
		timestamps: map[State]time.Time{StatePending: time.Now().UTC()},
	}
	return nil
}

// Advance moves a task to next, enforcing the machine's legal edges.
func (l *Ledger) Advance(taskID string, next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if !allowed(rec.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.state, next)
	}
	rec.state = next
	rec.timestamps[next] = time.Now().UTC()
	return nil
}

// Fail terminates a task with an error message. Failing an already
// terminal task is rejected.
func (l *Ledger) Fail(taskID, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if rec.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.state, StateFailed)
	}
	rec.state = StateFailed
	rec.errMsg = message
	rec.timestamps[StateFailed] = time.Now().UTC()
	return nil
}

// Snapshot returns a copy of a task's record.
func (l *Ledger) Snapshot(taskID string) (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[taskID]
	if !ok {
		return Snapshot{}, false
	}
	ts := make(map[State]time.Time, len(rec.timestamps))
	for k, v := range rec.timestamps {
		ts[k] = v
	}
	return Snapshot{
		TaskID:     taskID,
		State:      rec.state,
		Error:      rec.errMsg,
		Timestamps: ts,
	}, true
}

func allowed(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
