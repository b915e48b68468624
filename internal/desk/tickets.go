// Package desk is the operator-side core: it drives ticket and maintenance
// workflows against a remote backend and keeps a local projection of what the
// operator sees.
package desk

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// catalogFetchTimeout bounds the shared catalog request once it is detached
// from its callers.
const catalogFetchTimeout = 15 * time.Second

// TicketDeskConfig wires a TicketDesk.
type TicketDeskConfig struct {
	Backend TicketBackend
	// UserID is the signed-in operator, checked locally before technician actions.
	UserID    string
	Logger    *zap.Logger
	Tracker   *RequestTracker
	Directory *TechnicianDirectory
	Now       func() time.Time
}

// TicketDesk runs the assignment, acceptance and completion workflows.
// It is safe for concurrent use.
type TicketDesk struct {
	backend   TicketBackend
	userID    string
	logger    *zap.Logger
	tracker   *RequestTracker
	directory *TechnicianDirectory
	tickets   *TicketProjection
	now       func() time.Time

	catalogCalls singleflight.Group
	closed       atomic.Bool
}

func NewTicketDesk(cfg TicketDeskConfig) *TicketDesk {
	d := &TicketDesk{
		backend:   cfg.Backend,
		userID:    cfg.UserID,
		logger:    cfg.Logger,
		tracker:   cfg.Tracker,
		directory: cfg.Directory,
		tickets:   NewTicketProjection(),
		now:       cfg.Now,
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
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Close detaches the desk. Responses that arrive later are not applied.
func (d *TicketDesk) Close() {
	d.closed.Store(true)
}

// Tickets returns the projected tickets, optionally filtered by display status.
func (d *TicketDesk) Tickets(display domain.DisplayStatus) []domain.Ticket {
	return d.tickets.List(display)
}

// Ticket returns the projected ticket with id.
func (d *TicketDesk) Ticket(id string) (*domain.Ticket, bool) {
	return d.tickets.Get(id)
}

func (d *TicketDesk) Pagination() Pagination {
	return d.tickets.Pagination()
}

// RequestState exposes the in-flight marker for a ticket.
func (d *TicketDesk) RequestState(ticketID string) RequestState {
	return d.tracker.State(TicketKey(ticketID))
}

// LoadTechnicians refreshes the technician directory. Failures disable the
// picker and are never returned.
func (d *TicketDesk) LoadTechnicians(ctx context.Context) TechnicianPicker {
	return d.directory.Load(ctx)
}

// Refresh loads a ticket page into the projection.
func (d *TicketDesk) Refresh(ctx context.Context, query TicketQuery) (*TicketPage, error) {
	page, err := d.backend.ListTickets(ctx, query)
	if err != nil {
		return nil, d.fail(ctx, "refresh", "", err)
	}
	if !d.closed.Load() {
		d.tickets.Replace(*page)
	}
	return page, nil
}

// RefreshTicket reloads a single ticket.
func (d *TicketDesk) RefreshTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, err := d.backend.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, d.fail(ctx, "get", "", err)
	}
	d.apply(t)
	return t, nil
}

// Catalog fetches the inventory catalog. Concurrent callers share one request
// that is detached from their cancellation; each caller stops waiting when its
// own ctx ends.
func (d *TicketDesk) Catalog(ctx context.Context) (domain.Catalog, error) {
	ch := d.catalogCalls.DoChan("catalog", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogFetchTimeout)
		defer cancel()
		items, err := d.backend.ListCatalog(fetchCtx)
		if err != nil {
			return nil, err
		}
		return domain.NewCatalog(items), nil
	})
	select {
	case <-ctx.Done():
		return domain.Catalog{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Catalog{}, res.Err
		}
		return res.Val.(domain.Catalog), nil
	}
}

// AssignTicket binds an open ticket to an active technician from the directory.
// The projection only changes once the backend confirms.
func (d *TicketDesk) AssignTicket(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error) {
	if _, err := d.directory.Resolve(technicianID); err != nil {
		return nil, err
	}
	return d.transition(ctx, "assign", ticketID,
		func(t *domain.Ticket) error { return t.Assign(technicianID) },
		func(ctx context.Context) (*domain.Ticket, error) {
			return d.backend.AssignTicket(ctx, ticketID, technicianID)
		})
}

// AcceptTicket accepts an assigned ticket together with its inventory
// manifest. The catalog and the ticket are re-read right before submission so
// quantities are checked against current stock.
func (d *TicketDesk) AcceptTicket(ctx context.Context, ticketID string, lines []inventory.Line, note string) (*domain.Ticket, error) {
	current, fetched, err := d.ticket(ctx, ticketID)
	if err != nil {
		return nil, d.fail(ctx, "accept", "", err)
	}
	move := func(t *domain.Ticket) error { return t.Accept(d.userID, d.now()) }
	if _, err := d.check(ctx, current, fetched, move); err != nil {
		return nil, err
	}

	finish, err := d.tracker.Begin(TicketKey(ticketID))
	if err != nil {
		return nil, err
	}
	ticket, err := d.accept(ctx, ticketID, lines, note)
	finish(err)
	if err != nil {
		return nil, d.fail(ctx, "accept", ticketID, err)
	}
	return ticket, nil
}

func (d *TicketDesk) accept(ctx context.Context, ticketID string, lines []inventory.Line, note string) (*domain.Ticket, error) {
	var (
		catalog domain.Catalog
		fresh   *domain.Ticket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = d.Catalog(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		fresh, err = d.backend.GetTicket(gctx, ticketID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.apply(fresh)

	probe := fresh.Clone()
	if err := probe.Accept(d.userID, d.now()); err != nil {
		return nil, err
	}
	manifest, err := inventory.BuildManifest(lines, catalog, note)
	if err != nil {
		return nil, err
	}
	confirmed, err := d.backend.AcceptTicket(ctx, ticketID, manifest)
	if err != nil {
		return nil, err
	}
	if confirmed == nil {
		confirmed = probe
	}
	d.apply(confirmed)
	return confirmed, nil
}

// StartTicket moves accepted work to in-progress.
func (d *TicketDesk) StartTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return d.transition(ctx, "start", ticketID,
		func(t *domain.Ticket) error { return t.Start(d.userID) },
		func(ctx context.Context) (*domain.Ticket, error) { return d.backend.StartTicket(ctx, ticketID) })
}

// CompleteTicket finishes an accepted or in-progress ticket.
func (d *TicketDesk) CompleteTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return d.transition(ctx, "complete", ticketID,
		func(t *domain.Ticket) error { return t.Complete(d.userID, d.now()) },
		func(ctx context.Context) (*domain.Ticket, error) { return d.backend.CompleteTicket(ctx, ticketID) })
}

// transition checks the move locally, submits it under the ticket's in-flight
// marker and applies the confirmed ticket.
func (d *TicketDesk) transition(
	ctx context.Context,
	op, ticketID string,
	local func(*domain.Ticket) error,
	submit func(context.Context) (*domain.Ticket, error),
) (*domain.Ticket, error) {
	current, fetched, err := d.ticket(ctx, ticketID)
	if err != nil {
		return nil, d.fail(ctx, op, "", err)
	}
	probe, err := d.check(ctx, current, fetched, local)
	if err != nil {
		return nil, err
	}

	finish, err := d.tracker.Begin(TicketKey(ticketID))
	if err != nil {
		return nil, err
	}
	confirmed, err := submit(ctx)
	finish(err)
	if err != nil {
		return nil, d.fail(ctx, op, ticketID, err)
	}
	if confirmed == nil {
		if latest, ferr := d.backend.GetTicket(ctx, ticketID); ferr == nil {
			confirmed = latest
		} else {
			d.logger.Debug("refetch after transition failed", zap.String("ticket_id", ticketID), zap.Error(ferr))
			confirmed = probe
		}
	}
	d.apply(confirmed)
	return confirmed, nil
}

// ticket returns the projected ticket, fetching it when unknown. fetched
// reports whether the copy came straight from the backend.
func (d *TicketDesk) ticket(ctx context.Context, ticketID string) (t *domain.Ticket, fetched bool, err error) {
	if t, found := d.tickets.Get(ticketID); found {
		return t, false, nil
	}
	t, err = d.backend.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, false, err
	}
	d.apply(t)
	return t.Clone(), true, nil
}

// check runs move against a copy of current. A projected copy that rejects the
// move as an invalid transition may be stale, so the ticket is re-read once and
// the move checked again. Only the read endpoint is used here.
func (d *TicketDesk) check(ctx context.Context, current *domain.Ticket, fetched bool, move func(*domain.Ticket) error) (*domain.Ticket, error) {
	probe := current.Clone()
	err := move(probe)
	if err == nil || fetched || apperrors.CodeOf(err) != apperrors.CodeInvalidTransition {
		return probe, err
	}
	fresh, ferr := d.backend.GetTicket(ctx, current.ID)
	if ferr != nil {
		d.logger.Debug("refresh after rejected transition", zap.String("ticket_id", current.ID), zap.Error(ferr))
		return nil, err
	}
	d.apply(fresh)
	latest, found := d.tickets.Get(current.ID)
	if !found {
		latest = fresh.Clone()
	}
	probe = latest.Clone()
	if err := move(probe); err != nil {
		return nil, err
	}
	return probe, nil
}

func (d *TicketDesk) apply(t *domain.Ticket) {
	if d.closed.Load() || t == nil {
		return
	}
	if !d.tickets.Apply(t) {
		d.logger.Debug("ignored older ticket state", zap.String("ticket_id", t.ID), zap.String("status", string(t.Status)))
	}
}

// fail classifies err and logs unexpected failures. With a ticketID it also
// refreshes that ticket when the error says the local copy is stale.
func (d *TicketDesk) fail(ctx context.Context, op, ticketID string, err error) error {
	de := apperrors.ToDomainError(err)
	switch {
	case de.Code == apperrors.CodeInternal:
		d.logger.Error("ticket workflow failed",
			zap.String("op", op),
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
	case ticketID != "" && apperrors.NeedsRefresh(de):
		if t, rerr := d.backend.GetTicket(ctx, ticketID); rerr == nil {
			d.apply(t)
		} else {
			d.logger.Debug("refresh after failure", zap.String("ticket_id", ticketID), zap.Error(rerr))
		}
	}
	return de
}
