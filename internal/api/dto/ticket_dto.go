package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateTicketRequest is the multipart form of POST /create-ticket.
type CreateTicketRequest struct {
	CustomerID  string                `form:"customer_id" json:"customer_id"`
	Title       string                `form:"title" json:"title" validate:"required,max=200"`
	Description string                `form:"description" json:"description" validate:"max=5000"`
	Priority    domain.TicketPriority `form:"priority" json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	TechnicianID string `json:"technician_id" validate:"required"`
}

// ManifestLineRequest is one requested inventory line.
type ManifestLineRequest struct {
	InventoryID string `json:"inventory_id" validate:"required"`
	Quantity    int    `json:"quantity"`
}

// ManifestRequest carries the inventory usage submitted with acceptance.
type ManifestRequest struct {
	Items []ManifestLineRequest `json:"items" validate:"dive"`
	Note  string                `json:"note" validate:"max=1000"`
}

// AcceptTicketRequest payload.
type AcceptTicketRequest struct {
	Manifest ManifestRequest `json:"manifest"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customer_id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        domain.TicketStatus   `json:"status"`
	DisplayStatus domain.DisplayStatus  `json:"display_status"`
	Priority      domain.TicketPriority `json:"priority"`
	AssignedTo    *string               `json:"assigned_to"`
	AcceptedAt    *time.Time            `json:"accepted_at"`
	CompletedAt   *time.Time            `json:"completed_at"`
	Photos        []string              `json:"photos"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// InventoryUsageResponse is stock consumed by a ticket.
type InventoryUsageResponse struct {
	ID          string    `json:"id"`
	InventoryID string    `json:"inventory_id"`
	Quantity    int       `json:"quantity"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketFromDomain maps a ticket to its wire form.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	photos := t.Photos
	if photos == nil {
		photos = []string{}
	}
	return TicketResponse{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		DisplayStatus: domain.DisplayStatusOf(t.Status),
		Priority:      t.Priority,
		AssignedTo:    t.AssignedTo,
		AcceptedAt:    t.AcceptedAt,
		CompletedAt:   t.CompletedAt,
		Photos:        photos,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ToDomain converts a wire ticket back to the domain type.
func (r TicketResponse) ToDomain() *domain.Ticket {
	return &domain.Ticket{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		AssignedTo:  r.AssignedTo,
		AcceptedAt:  r.AcceptedAt,
		CompletedAt: r.CompletedAt,
		Photos:      r.Photos,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
