package desk

import (
	"sync"

	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// RequestState is the lifecycle of the latest mutating request for one entity.
type RequestState int

const (
	RequestIdle RequestState = iota
	RequestPending
	RequestFailed
)

func (s RequestState) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestFailed:
		return "failed"
	}
	return "idle"
}

// EntityKey identifies an entity across surfaces.
type EntityKey struct {
	Kind string
	ID   string
}

func TicketKey(id string) EntityKey     { return EntityKey{Kind: "ticket", ID: id} }
func OccurrenceKey(id string) EntityKey { return EntityKey{Kind: "maintenance", ID: id} }
func DraftKey(id string) EntityKey      { return EntityKey{Kind: "contract-draft", ID: id} }

type requestEntry struct {
	state RequestState
	err   error
}

// RequestTracker serializes mutating calls per entity. Calls for different
// keys never block each other. A tracker may be shared by several desks that
// show the same entities.
type RequestTracker struct {
	mu      sync.Mutex
	entries map[EntityKey]requestEntry
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{entries: make(map[EntityKey]requestEntry)}
}

// Begin marks key pending. The returned finish func records the outcome and
// must be called exactly once. REQUEST_IN_FLIGHT is returned while another
// call for key is outstanding.
func (t *RequestTracker) Begin(key EntityKey) (finish func(error), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[key].state == RequestPending {
		return nil, apperrors.NewRequestInFlight(map[string]any{"kind": key.Kind, "id": key.ID})
	}
	t.entries[key] = requestEntry{state: RequestPending}

	var once sync.Once
	return func(result error) {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if result != nil {
				t.entries[key] = requestEntry{state: RequestFailed, err: result}
				return
			}
			delete(t.entries, key)
		})
	}, nil
}

// State returns the current state for key.
func (t *RequestTracker) State(key EntityKey) RequestState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[key].state
}

// Pending reports whether a call for key is outstanding.
func (t *RequestTracker) Pending(key EntityKey) bool {
	return t.State(key) == RequestPending
}

// LastError returns the error of the last failed call for key, if any.
func (t *RequestTracker) LastError(key EntityKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[key].err
}
