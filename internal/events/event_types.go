package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketAccepted      EventType = "ticket_accepted"
	EventTicketStarted       EventType = "ticket_started"
	EventTicketCompleted     EventType = "ticket_completed"
	EventInventoryConsumed   EventType = "inventory_consumed"
	EventInventoryAdjusted   EventType = "inventory_adjusted"
	EventContractCreated     EventType = "contract_created"
	EventMaintenanceAssigned EventType = "maintenance_assigned"
)

// AllEventTypes lists every event the services emit.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketAssigned,
	EventTicketAccepted,
	EventTicketStarted,
	EventTicketCompleted,
	EventInventoryConsumed,
	EventInventoryAdjusted,
	EventContractCreated,
	EventMaintenanceAssigned,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string          `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	AggregateID string      `json:"aggregate_id"`
	Actor       Actor       `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID string                `json:"customer_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
	PhotoCount int                   `json:"photo_count"`
}

// TicketStatusChangedPayload is used for assign, accept, start and complete.
type TicketStatusChangedPayload struct {
	OldStatus  domain.TicketStatus `json:"old_status"`
	NewStatus  domain.TicketStatus `json:"new_status"`
	AssignedTo *string             `json:"assigned_to,omitempty"`
}

// InventoryConsumedPayload lists the stock taken by an accepted ticket.
type InventoryConsumedPayload struct {
	TicketID string          `json:"ticket_id"`
	Lines    []ConsumedLine  `json:"lines"`
	Note     string          `json:"note,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

// ConsumedLine is one manifest line after acceptance.
type ConsumedLine struct {
	InventoryID string `json:"inventory_id"`
	Quantity    int    `json:"quantity"`
}

// InventoryAdjustedPayload payload.
type InventoryAdjustedPayload struct {
	Delta             int `json:"delta"`
	AvailableQuantity int `json:"available_quantity"`
}

// ContractCreatedPayload payload.
type ContractCreatedPayload struct {
	CustomerID   string `json:"customer_id"`
	ContractType string `json:"contract_type"`
	Occurrences  int    `json:"occurrences"`
}

// MaintenanceAssignedPayload payload.
type MaintenanceAssignedPayload struct {
	ContractID   string `json:"contract_id"`
	TechnicianID string `json:"technician_id"`
}
