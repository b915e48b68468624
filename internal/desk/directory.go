package desk

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TechnicianPicker is what an assignment control renders.
type TechnicianPicker struct {
	Enabled     bool
	Technicians []domain.User
	// Reason is set when the picker is disabled.
	Reason string
}

// TechnicianDirectory caches the assignable technicians. A failed load
// disables the picker instead of failing the caller.
type TechnicianDirectory struct {
	source TechnicianSource
	logger *zap.Logger

	mu     sync.RWMutex
	loaded bool
	users  map[string]domain.User
	order  []string
	reason string
}

func NewTechnicianDirectory(source TechnicianSource, logger *zap.Logger) *TechnicianDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TechnicianDirectory{source: source, logger: logger, users: map[string]domain.User{}}
}

// Load fetches the directory and returns the resulting picker.
func (d *TechnicianDirectory) Load(ctx context.Context) TechnicianPicker {
	users, err := d.source.ListTechnicians(ctx)

	d.mu.Lock()
	if err != nil {
		d.loaded = false
		d.users = map[string]domain.User{}
		d.order = nil
		d.reason = apperrors.UserMessage(err)
		d.mu.Unlock()
		d.logger.Warn("technician directory unavailable", zap.Error(err))
		return d.Picker()
	}
	d.loaded = true
	d.reason = ""
	d.users = make(map[string]domain.User, len(users))
	d.order = d.order[:0]
	for _, u := range users {
		if !u.CanTakeAssignments() {
			continue
		}
		if _, dup := d.users[u.ID]; !dup {
			d.order = append(d.order, u.ID)
		}
		d.users[u.ID] = u
	}
	d.mu.Unlock()
	return d.Picker()
}

// Picker returns the current picker state.
func (d *TechnicianDirectory) Picker() TechnicianPicker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded {
		reason := d.reason
		if reason == "" {
			reason = "technicians not loaded"
		}
		return TechnicianPicker{Reason: reason}
	}
	techs := make([]domain.User, 0, len(d.order))
	for _, id := range d.order {
		techs = append(techs, d.users[id])
	}
	if len(techs) == 0 {
		return TechnicianPicker{Technicians: techs, Reason: "no active technicians"}
	}
	return TechnicianPicker{Enabled: true, Technicians: techs}
}

// Resolve returns the technician with id, or a VALIDATION_FAILED error when
// the directory is unavailable or does not list an active technician by that id.
func (d *TechnicianDirectory) Resolve(id string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id == "" {
		return domain.User{}, apperrors.NewValidationError("technician_id required", map[string]any{"technician_id": "required"})
	}
	if !d.loaded {
		return domain.User{}, apperrors.NewValidationError("technician list is unavailable", nil)
	}
	u, found := d.users[id]
	if !found {
		return domain.User{}, apperrors.NewValidationError("technician is not active or does not exist",
			map[string]any{"technician_id": id})
	}
	return u, nil
}
