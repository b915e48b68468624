package desk

// Freshness says how far a displayed value can be trusted.
type Freshness int

const (
	// Unknown means no value has been observed or the last refresh failed.
	Unknown Freshness = iota
	// Optimistic holds a locally applied value the backend acknowledged but no
	// refresh has shown yet.
	Optimistic
	// Confirmed holds the value last read from the backend.
	Confirmed
)

func (f Freshness) String() string {
	switch f {
	case Optimistic:
		return "optimistic"
	case Confirmed:
		return "confirmed"
	}
	return "unknown"
}

// Reconciled is a displayed field that distinguishes server-confirmed values
// from optimistic ones, so a stale refresh never reverts an optimistic write.
type Reconciled[T any] struct {
	value T
	set   bool
	state Freshness
}

// ConfirmedValue returns a field already confirmed by the backend.
func ConfirmedValue[T any](v T) Reconciled[T] {
	return Reconciled[T]{value: v, set: true, state: Confirmed}
}

// Value returns the displayed value and whether one is present.
func (r Reconciled[T]) Value() (T, bool) {
	return r.value, r.set
}

func (r Reconciled[T]) State() Freshness {
	return r.state
}

// SetOptimistic shows v before any refresh confirms it.
func (r *Reconciled[T]) SetOptimistic(v T) {
	r.value = v
	r.set = true
	r.state = Optimistic
}

// Reconcile applies a refresh result. A nil server value does not clear an
// optimistic one since the refresh may predate the write.
func (r *Reconciled[T]) Reconcile(server *T) {
	if server != nil {
		r.value = *server
		r.set = true
		r.state = Confirmed
		return
	}
	if r.state == Optimistic {
		return
	}
	var zero T
	r.value = zero
	r.set = false
	r.state = Confirmed
}

// MarkStale records a failed refresh. Optimistic values stay as they are.
func (r *Reconciled[T]) MarkStale() {
	if r.state == Confirmed {
		r.state = Unknown
	}
}
