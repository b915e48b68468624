package desk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// ContractFields are the header fields of a contract being drafted.
type ContractFields struct {
	BranchID       string
	CustomerID     string
	ContractType   string
	PurchaseDate   time.Time
	WarrantyEndsAt *time.Time
	Amount         *decimal.Decimal
	Notes          string
}

// OccurrenceDraft is one visit in a contract draft. A zero ScheduledDate
// means the date has not been entered yet.
type OccurrenceDraft struct {
	ScheduledDate time.Time
	Note          string
}

var errDraftSubmitted = apperrors.NewInvalidTransition("contract has already been submitted", nil)

// ContractDraft collects a contract and its visits before submission.
// It is editable until the contract is submitted.
type ContractDraft struct {
	id string

	mu          sync.Mutex
	fields      ContractFields
	occurrences []OccurrenceDraft
	submitted   bool
}

func NewContractDraft(fields ContractFields) *ContractDraft {
	return &ContractDraft{id: uuid.NewString(), fields: fields}
}

func (d *ContractDraft) ID() string { return d.id }

// SetFields replaces the header fields.
func (d *ContractDraft) SetFields(fields ContractFields) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitted {
		return errDraftSubmitted
	}
	d.fields = fields
	return nil
}

// AddOccurrence appends a visit and returns its index.
func (d *ContractDraft) AddOccurrence(o OccurrenceDraft) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitted {
		return -1, errDraftSubmitted
	}
	d.occurrences = append(d.occurrences, o)
	return len(d.occurrences) - 1, nil
}

// UpdateOccurrence replaces the visit at index.
func (d *ContractDraft) UpdateOccurrence(index int, o OccurrenceDraft) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitted {
		return errDraftSubmitted
	}
	if index < 0 || index >= len(d.occurrences) {
		return apperrors.NewNotFound("maintenance", map[string]any{"index": index})
	}
	d.occurrences[index] = o
	return nil
}

// RemoveOccurrence drops the visit at index. The last visit cannot be removed.
func (d *ContractDraft) RemoveOccurrence(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitted {
		return errDraftSubmitted
	}
	if index < 0 || index >= len(d.occurrences) {
		return apperrors.NewNotFound("maintenance", map[string]any{"index": index})
	}
	if len(d.occurrences) == 1 {
		return apperrors.NewValidationError("a contract needs at least one maintenance",
			map[string]any{"maintenances": "at least one maintenance is required"})
	}
	d.occurrences = append(d.occurrences[:index], d.occurrences[index+1:]...)
	return nil
}

// Occurrences returns a copy of the drafted visits.
func (d *ContractDraft) Occurrences() []OccurrenceDraft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]OccurrenceDraft(nil), d.occurrences...)
}

func (d *ContractDraft) Submitted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted
}

// Build validates the draft and returns the contract to submit. Every visit
// starts pending.
func (d *ContractDraft) Build() (*domain.AMCContract, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitted {
		return nil, errDraftSubmitted
	}
	contract := &domain.AMCContract{
		BranchID:       d.fields.BranchID,
		CustomerID:     d.fields.CustomerID,
		ContractType:   d.fields.ContractType,
		PurchaseDate:   d.fields.PurchaseDate,
		WarrantyEndsAt: d.fields.WarrantyEndsAt,
		Amount:         d.fields.Amount,
		Notes:          d.fields.Notes,
	}
	for _, o := range d.occurrences {
		contract.Occurrences = append(contract.Occurrences, domain.MaintenanceOccurrence{
			ScheduledDate: o.ScheduledDate,
			Note:          o.Note,
			Status:        domain.OccurrencePending,
		})
	}
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	return contract, nil
}

func (d *ContractDraft) markSubmitted() {
	d.mu.Lock()
	d.submitted = true
	d.mu.Unlock()
}

// OccurrenceView is a visit as shown to the operator. Technician keeps an
// optimistic assignment visible until a refresh confirms it.
type OccurrenceView struct {
	ID            string
	ContractID    string
	ScheduledDate time.Time
	Note          string
	Status        domain.OccurrenceStatus
	Technician    Reconciled[domain.TechnicianRef]
}

// ContractView is a contract as shown to the operator.
type ContractView struct {
	Contract    domain.AMCContract
	Occurrences []OccurrenceView
}

func (v *ContractView) occurrence(id string) *OccurrenceView {
	for i := range v.Occurrences {
		if v.Occurrences[i].ID == id {
			return &v.Occurrences[i]
		}
	}
	return nil
}

func (v *ContractView) clone() *ContractView {
	c := &ContractView{Contract: v.Contract, Occurrences: append([]OccurrenceView(nil), v.Occurrences...)}
	c.Contract.Occurrences = append([]domain.MaintenanceOccurrence(nil), v.Contract.Occurrences...)
	return c
}

// ContractDeskConfig wires a ContractDesk.
type ContractDeskConfig struct {
	Backend   ContractBackend
	Logger    *zap.Logger
	Tracker   *RequestTracker
	Directory *TechnicianDirectory
}

// ContractDesk submits contracts and schedules technicians onto visits.
// It is safe for concurrent use.
type ContractDesk struct {
	backend   ContractBackend
	logger    *zap.Logger
	tracker   *RequestTracker
	directory *TechnicianDirectory

	mu        sync.RWMutex
	contracts map[string]*ContractView
	byVisit   map[string]string
	closed    atomic.Bool
}

func NewContractDesk(cfg ContractDeskConfig) *ContractDesk {
	d := &ContractDesk{
		backend:   cfg.Backend,
		logger:    cfg.Logger,
		tracker:   cfg.Tracker,
		directory: cfg.Directory,
		contracts: make(map[string]*ContractView),
		byVisit:   make(map[string]string),
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.tracker == nil {
		d.tracker = NewRequestTracker()
	}
	if d.directory == nil {
		d.directory = NewTechnicianDirectory(cfg.Backend, d.logger)
	}
	return d
}

// Close detaches the desk. Responses that arrive later are not applied.
func (d *ContractDesk) Close() {
	d.closed.Store(true)
}

// LoadTechnicians refreshes the technician directory. Failures disable the picker.
func (d *ContractDesk) LoadTechnicians(ctx context.Context) TechnicianPicker {
	return d.directory.Load(ctx)
}

// RequestState exposes the in-flight marker for a visit.
func (d *ContractDesk) RequestState(occurrenceID string) RequestState {
	return d.tracker.State(OccurrenceKey(occurrenceID))
}

// Submit validates the draft and creates the contract. Invalid drafts,
// including ones without visits, never reach the backend.
func (d *ContractDesk) Submit(ctx context.Context, draft *ContractDraft) (*ContractView, error) {
	contract, err := draft.Build()
	if err != nil {
		return nil, err
	}
	finish, err := d.tracker.Begin(DraftKey(draft.ID()))
	if err != nil {
		return nil, err
	}
	created, err := d.backend.CreateContract(ctx, contract)
	finish(err)
	if err != nil {
		return nil, d.fail("create_contract", "", err)
	}
	draft.markSubmitted()
	return d.store(created), nil
}

// Contract returns a snapshot of a loaded contract.
func (d *ContractDesk) Contract(id string) (*ContractView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, found := d.contracts[id]
	if !found {
		return nil, false
	}
	return v.clone(), true
}

// Refresh reloads a contract. Optimistic technician assignments survive a
// refresh that does not show them yet, and a failed refresh only marks
// confirmed values stale.
func (d *ContractDesk) Refresh(ctx context.Context, contractID string) (*ContractView, error) {
	contract, err := d.backend.GetContract(ctx, contractID)
	if err != nil {
		d.markStale(contractID)
		return nil, d.fail("get_contract", contractID, err)
	}
	return d.store(contract), nil
}

// AssignTechnician schedules a technician onto a pending visit. On success
// the technician is shown at once as an optimistic value.
func (d *ContractDesk) AssignTechnician(ctx context.Context, occurrenceID, technicianID string) (*OccurrenceView, error) {
	tech, err := d.directory.Resolve(technicianID)
	if err != nil {
		return nil, err
	}
	current, found := d.visit(occurrenceID)
	if !found {
		return nil, apperrors.NewNotFound("maintenance", map[string]any{"maintenance_id": occurrenceID})
	}
	probe := domain.MaintenanceOccurrence{ID: current.ID, Status: current.Status}
	if err := probe.AssignTechnician(tech.Ref()); err != nil {
		return nil, err
	}

	finish, err := d.tracker.Begin(OccurrenceKey(occurrenceID))
	if err != nil {
		return nil, err
	}
	err = d.backend.AssignMaintenance(ctx, occurrenceID, technicianID)
	finish(err)
	if err != nil {
		de := d.fail("assign_maintenance", occurrenceID, err)
		if apperrors.NeedsRefresh(de) {
			d.refreshVisit(ctx, current.ContractID)
		}
		return nil, de
	}

	current.Status = domain.OccurrenceAssigned
	current.Technician.SetOptimistic(tech.Ref())
	if d.closed.Load() {
		return &current, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	view, found := d.contracts[d.byVisit[occurrenceID]]
	if !found {
		return &current, nil
	}
	occ := view.occurrence(occurrenceID)
	if occ == nil {
		return &current, nil
	}
	occ.Status = domain.OccurrenceAssigned
	occ.Technician.SetOptimistic(tech.Ref())
	out := *occ
	return &out, nil
}

// refreshVisit reloads the contract of a rejected visit so the operator sees
// the backend's view of it.
func (d *ContractDesk) refreshVisit(ctx context.Context, contractID string) {
	if _, err := d.Refresh(ctx, contractID); err != nil {
		d.logger.Debug("refresh after rejected assignment", zap.String("contract_id", contractID), zap.Error(err))
	}
}

func (d *ContractDesk) visit(occurrenceID string) (OccurrenceView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	view, found := d.contracts[d.byVisit[occurrenceID]]
	if !found {
		return OccurrenceView{}, false
	}
	occ := view.occurrence(occurrenceID)
	if occ == nil {
		return OccurrenceView{}, false
	}
	return *occ, true
}

// store merges a backend contract into the local views.
func (d *ContractDesk) store(contract *domain.AMCContract) *ContractView {
	next := &ContractView{Contract: *contract}
	next.Contract.Occurrences = append([]domain.MaintenanceOccurrence(nil), contract.Occurrences...)

	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.contracts[contract.ID]
	for _, occ := range contract.Occurrences {
		view := OccurrenceView{
			ID:            occ.ID,
			ContractID:    contract.ID,
			ScheduledDate: occ.ScheduledDate,
			Note:          occ.Note,
			Status:        occ.Status,
		}
		if prev != nil {
			if old := prev.occurrence(occ.ID); old != nil {
				view.Technician = old.Technician
			}
		}
		server := serverTechnician(occ)
		if shown, ok := view.Technician.Value(); ok && server != nil && server.ID == shown.ID && server.Name == "" {
			server.Name, server.Email = shown.Name, shown.Email
		}
		view.Technician.Reconcile(server)
		if view.Technician.State() == Optimistic && view.Status == domain.OccurrencePending {
			view.Status = domain.OccurrenceAssigned
		}
		next.Occurrences = append(next.Occurrences, view)
	}
	if d.closed.Load() {
		return next.clone()
	}
	d.contracts[contract.ID] = next
	for _, occ := range next.Occurrences {
		d.byVisit[occ.ID] = contract.ID
	}
	return next.clone()
}

func (d *ContractDesk) markStale(contractID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	view, found := d.contracts[contractID]
	if !found {
		return
	}
	for i := range view.Occurrences {
		view.Occurrences[i].Technician.MarkStale()
	}
}

func (d *ContractDesk) fail(op, id string, err error) error {
	de := apperrors.ToDomainError(err)
	if de.Code == apperrors.CodeInternal {
		d.logger.Error("maintenance workflow failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
	}
	return de
}

// serverTechnician extracts the technician a refresh reports for occ.
func serverTechnician(occ domain.MaintenanceOccurrence) *domain.TechnicianRef {
	if occ.Technician != nil {
		ref := *occ.Technician
		return &ref
	}
	if occ.TechnicianID != nil {
		return &domain.TechnicianRef{ID: *occ.TechnicianID}
	}
	return nil
}

// String renders the displayed technician, or the picker prompt when none is shown.
func (v OccurrenceView) String() string {
	if tech, ok := v.Technician.Value(); ok {
		name := tech.Name
		if name == "" {
			name = tech.ID
		}
		return fmt.Sprintf("%s  %s  %s (%s)", v.ScheduledDate.Format("2006-01-02"), v.Status, name, v.Technician.State())
	}
	return fmt.Sprintf("%s  %s  Select Technician", v.ScheduledDate.Format("2006-01-02"), v.Status)
}
