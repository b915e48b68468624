package desk

import (
	"context"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
)

// TechnicianSource lists the users that may take assignments.
type TechnicianSource interface {
	ListTechnicians(ctx context.Context) ([]domain.User, error)
}

// TicketBackend is the remote store behind the ticket workflows.
//
// AssignTicket may return a nil ticket when the backend acknowledges without a body.
type TicketBackend interface {
	TechnicianSource
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, query TicketQuery) (*TicketPage, error)
	AssignTicket(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error)
	AcceptTicket(ctx context.Context, ticketID string, manifest inventory.Manifest) (*domain.Ticket, error)
	StartTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	CompleteTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListCatalog(ctx context.Context) ([]domain.InventoryItem, error)
}

// ContractBackend is the remote store behind the maintenance scheduler.
type ContractBackend interface {
	TechnicianSource
	CreateContract(ctx context.Context, contract *domain.AMCContract) (*domain.AMCContract, error)
	GetContract(ctx context.Context, contractID string) (*domain.AMCContract, error)
	AssignMaintenance(ctx context.Context, occurrenceID, technicianID string) error
}
