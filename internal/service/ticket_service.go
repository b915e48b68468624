package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/inventory"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// CatalogStore reads the inventory catalog and drops cached copies after stock changes.
type CatalogStore interface {
	List(ctx context.Context) ([]domain.InventoryItem, error)
	Invalidate(ctx context.Context)
}

// TicketService coordinates ticket workflows against the authoritative store.
type TicketService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	history repository.TicketHistoryRepository
	catalog CatalogStore
	events  publisher
	logger  *zap.Logger
	now     func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Catalog     CatalogStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerID  string
	Title       string
	Description string
	Priority    domain.TicketPriority
	Photos      []string
}

// TicketListFilter describes listing filters. Statuses and DisplayStatus combine.
type TicketListFilter struct {
	Statuses      []domain.TicketStatus
	DisplayStatus domain.DisplayStatus
	AssignedTo    *string
	CustomerID    *string
	SearchTerm    *string
	PageRequest
}

// TicketPage is one page of tickets.
type TicketPage struct {
	Tickets    []domain.Ticket
	Pagination Pagination
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets: deps.TicketRepo,
		users:   deps.UserRepo,
		history: deps.HistoryRepo,
		catalog: deps.Catalog,
		events:  publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:  logger,
		now:     time.Now,
	}
}

// CreateTicket opens a ticket. Customers always file for themselves.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	customerID := strings.TrimSpace(input.CustomerID)
	if actor.Role == domain.UserRoleCustomer {
		customerID = actor.ID
	}
	details := map[string]any{}
	if customerID == "" {
		details["customer_id"] = "required"
	}
	if strings.TrimSpace(input.Title) == "" {
		details["title"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	ticket := &domain.Ticket{
		CustomerID:  customerID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Photos:      input.Photos,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.record(ctx, actor, ticket.ID, domain.ChangeTypeCreated, nil, map[string]any{"status": ticket.Status})
	s.events.publish(ctx, events.Event{
		Type:        events.EventTicketCreated,
		AggregateID: ticket.ID,
		Actor:       actorOf(actor),
		Payload: events.TicketCreatedPayload{
			CustomerID: ticket.CustomerID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
			PhotoCount: len(ticket.Photos),
		},
	})
	return ticket, nil
}

// GetTicket returns a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets returns a page of tickets scoped to the actor's role.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, filter TicketListFilter) (*TicketPage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	switch actor.Role {
	case domain.UserRoleCustomer:
		filter.CustomerID = &actor.ID
	case domain.UserRoleTechnician:
		filter.AssignedTo = &actor.ID
	}
	return s.list(ctx, filter)
}

// ListCustomerTickets lists the tickets filed by customerID.
func (s *TicketService) ListCustomerTickets(ctx context.Context, actor *domain.User, customerID string, filter TicketListFilter) (*TicketPage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if actor.Role == domain.UserRoleCustomer && actor.ID != customerID {
		return nil, apperrors.NewForbidden("access denied")
	}
	filter.CustomerID = &customerID
	if actor.Role == domain.UserRoleTechnician {
		filter.AssignedTo = &actor.ID
	}
	return s.list(ctx, filter)
}

func (s *TicketService) list(ctx context.Context, filter TicketListFilter) (*TicketPage, error) {
	page := filter.PageRequest.normalize()
	statuses := filter.Statuses
	if filter.DisplayStatus != "" {
		statuses = intersectStatuses(statuses, domain.StatusesForDisplay(filter.DisplayStatus))
		if len(statuses) == 0 {
			return &TicketPage{Tickets: []domain.Ticket{}, Pagination: newPagination(page, 0)}, nil
		}
	}
	repoFilter := repository.TicketFilter{
		CustomerID: filter.CustomerID,
		AssignedTo: filter.AssignedTo,
		Statuses:   statuses,
		SearchTerm: filter.SearchTerm,
		Limit:      page.PerPage,
		Offset:     page.offset(),
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return &TicketPage{Tickets: tickets, Pagination: newPagination(page, total)}, nil
}

// AssignTicket binds an open ticket to an active technician.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, technicianID string) (*domain.Ticket, error) {
	if strings.TrimSpace(technicianID) == "" {
		return nil, apperrors.NewValidationError("technician_id required", map[string]any{"technician_id": "required"})
	}
	tech, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		return nil, notFoundOr(err, "technician", technicianID)
	}
	if !tech.CanTakeAssignments() {
		return nil, apperrors.NewValidationError("user cannot take assignments",
			map[string]any{"technician_id": "must be an active technician"})
	}

	return s.transition(ctx, actor, ticketID, events.EventTicketAssigned, func(t *domain.Ticket) error {
		return t.Assign(tech.ID)
	})
}

// AcceptTicket accepts an assigned ticket and consumes the requested stock atomically.
func (s *TicketService) AcceptTicket(ctx context.Context, actor *domain.User, ticketID string, lines []inventory.Line, note string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	from := current.Status
	ticket := current.Clone()
	if err := ticket.Accept(actor.ID, s.now()); err != nil {
		return nil, err
	}

	items, err := s.catalog.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	catalog := domain.NewCatalog(items)
	manifest, err := inventory.BuildManifest(lines, catalog, note)
	if err != nil {
		return nil, err
	}

	if err := s.tickets.SaveAcceptance(ctx, ticket, from, manifest); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleWrite):
			return nil, staleTicket(ticketID)
		case errors.Is(err, repository.ErrInsufficientStock):
			s.catalog.Invalidate(ctx)
			return nil, apperrors.NewValidationError("insufficient stock for the requested items",
				map[string]any{"items": err.Error()})
		}
		return nil, apperrors.MapError(err)
	}
	if !manifest.Empty() {
		s.catalog.Invalidate(ctx)
	}

	s.recordStatus(ctx, actor, ticket.ID, from, ticket.Status)
	s.events.publish(ctx, statusEvent(events.EventTicketAccepted, actor, ticket, from))
	if !manifest.Empty() {
		consumed := make([]events.ConsumedLine, 0, len(manifest.Lines()))
		usage := make([]map[string]any, 0, len(manifest.Lines()))
		value := decimal.Zero
		for _, line := range manifest.Lines() {
			consumed = append(consumed, events.ConsumedLine{InventoryID: line.ItemID, Quantity: line.Quantity})
			usage = append(usage, map[string]any{"inventory_id": line.ItemID, "quantity": line.Quantity})
			if item, ok := catalog.Get(line.ItemID); ok {
				value = value.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
			}
		}
		s.record(ctx, actor, ticket.ID, domain.ChangeTypeUsage, nil, map[string]any{"items": usage, "note": manifest.Note()})
		s.events.publish(ctx, events.Event{
			Type:        events.EventInventoryConsumed,
			AggregateID: ticket.ID,
			Actor:       actorOf(actor),
			Payload: events.InventoryConsumedPayload{
				TicketID: ticket.ID,
				Lines:    consumed,
				Note:     manifest.Note(),
				Value:    value,
			},
		})
	}
	return ticket, nil
}

// StartTicket marks accepted work as in progress.
func (s *TicketService) StartTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.transition(ctx, actor, ticketID, events.EventTicketStarted, func(t *domain.Ticket) error {
		return t.Start(actor.ID)
	})
}

// CompleteTicket finishes an accepted or in-progress ticket.
func (s *TicketService) CompleteTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.transition(ctx, actor, ticketID, events.EventTicketCompleted, func(t *domain.Ticket) error {
		return t.Complete(actor.ID, s.now())
	})
}

// ListHistory returns the audit trail of a ticket the actor may see.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.TicketHistory{}
	}
	return entries, nil
}

// transition loads, applies and conditionally persists a lifecycle change.
func (s *TicketService) transition(ctx context.Context, actor *domain.User, ticketID string, eventType events.EventType, apply func(*domain.Ticket) error) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	from := current.Status
	ticket := current.Clone()
	if err := apply(ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.SaveTransition(ctx, ticket, from); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, staleTicket(ticketID)
		}
		return nil, apperrors.MapError(err)
	}

	if eventType == events.EventTicketAssigned {
		s.record(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
			map[string]any{"assigned_to": current.AssignedTo},
			map[string]any{"assigned_to": ticket.AssignedTo})
	}
	s.recordStatus(ctx, actor, ticket.ID, from, ticket.Status)
	s.events.publish(ctx, statusEvent(eventType, actor, ticket, from))
	return ticket, nil
}

func (s *TicketService) recordStatus(ctx context.Context, actor *domain.User, ticketID string, from, to domain.TicketStatus) {
	s.record(ctx, actor, ticketID, domain.ChangeTypeStatus,
		map[string]any{"status": from},
		map[string]any{"status": to})
}

// record writes an audit entry. The transition is already committed, so a
// failed audit write is logged rather than returned.
func (s *TicketService) record(ctx context.Context, actor *domain.User, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actor != nil {
		entry.ChangedByID = &actor.ID
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("ticket history write failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}

func statusEvent(eventType events.EventType, actor *domain.User, ticket *domain.Ticket, from domain.TicketStatus) events.Event {
	return events.Event{
		Type:        eventType,
		AggregateID: ticket.ID,
		Actor:       actorOf(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:  from,
			NewStatus:  ticket.Status,
			AssignedTo: ticket.AssignedTo,
		},
	}
}

func staleTicket(ticketID string) error {
	return apperrors.NewInvalidTransition("ticket was changed by someone else; refresh and try again",
		map[string]any{"ticket_id": ticketID})
}

func canView(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case domain.UserRoleAdmin:
		return true
	case domain.UserRoleTechnician:
		return ticket.IsAssignedTo(actor.ID)
	default:
		return ticket.CustomerID == actor.ID
	}
}

func intersectStatuses(requested, allowed []domain.TicketStatus) []domain.TicketStatus {
	if len(requested) == 0 {
		return allowed
	}
	out := make([]domain.TicketStatus, 0, len(requested))
	for _, r := range requested {
		for _, a := range allowed {
			if r == a {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
