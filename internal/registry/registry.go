package registry

import (
	"errors"
	"sync"

	"github.com/Moudathirou/meetscribe/internal/executor"
)

// ErrAlreadyInFlight is returned by Put when a live job exists for the key
var ErrAlreadyInFlight = errors.New("a job of this kind is already in flight for this user")

// Kind distinguishes the job slots a user can occupy.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindSummary       Kind = "summary"
)

// Key identifies one job slot. One live job per key at any time.
type Key struct {
	UserID string
	Kind   Kind
}

// State is the observable lifecycle position of a job.
type State int

const (
	StateNotFound State = iota
	StatePending
	StateCompleted
	StateFailed
)

// Result is the outcome of a Peek. Payload is set for StateCompleted,
// Err for StateFailed.
type Result struct {
	State   State
	Payload any
	Err     error
}

// Registry is the single authoritative map of in-flight jobs. It is
// constructed once at startup and handed to every request handler; no
// package-level state.
//
// Admission is a two-step protocol: Reserve claims the slot before the job
// is queued, Bind attaches the handle once it is. A duplicate submit fails
// Reserve and therefore never reaches the executor. A nil entry is a
// reserved slot whose handle is not bound yet.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*executor.Handle
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		entries: make(map[Key]*executor.Handle),
	}
}

// Reserve claims the slot for key. The existence check and the claim are one
// atomic step: two concurrent submits cannot both observe "absent".
func (r *Registry) Reserve(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; ok {
		return ErrAlreadyInFlight
	}

	r.entries[key] = nil
	return nil
}

// Bind attaches the queued job's handle to a reserved slot.
func (r *Registry) Bind(key Key, handle *executor.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = handle
}

// Drop releases a reservation whose job was never queued.
func (r *Registry) Drop(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
}

// Peek reports the job state for key. Observing a terminal state drains the
// entry in the same atomic step, so exactly one poller sees the result and
// later polls get NotFound.
func (r *Registry) Peek(key Key) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.entries[key]
	if !ok {
		return Result{State: StateNotFound}
	}

	// A reserved slot whose handle is not bound yet counts as pending.
	if handle == nil || !handle.Done() {
		return Result{State: StatePending}
	}

	delete(r.entries, key)

	payload, err := handle.Result()
	if err != nil {
		return Result{State: StateFailed, Err: err}
	}
	return Result{State: StateCompleted, Payload: payload}
}

// Len reports the number of live entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
