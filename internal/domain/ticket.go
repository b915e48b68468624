package domain

import (
	"fmt"
	"time"

	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusAccepted   TicketStatus = "accepted"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	CustomerID  string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	AssignedTo  *string
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	Photos      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var ticketStatusRank = map[TicketStatus]int{
	TicketStatusOpen:       0,
	TicketStatusAssigned:   1,
	TicketStatusAccepted:   2,
	TicketStatusInProgress: 3,
	TicketStatusCompleted:  4,
	TicketStatusClosed:     5,
}

// Valid reports whether s is part of the lifecycle.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatusRank[s]
	return ok
}

// Terminal reports whether no further lifecycle transition is possible.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusClosed
}

// AtLeast reports whether s is at or beyond other in the lifecycle.
func (s TicketStatus) AtLeast(other TicketStatus) bool {
	return ticketStatusRank[s] >= ticketStatusRank[other]
}

// RequiresAssignee reports whether tickets in this status carry an assignee.
func (s TicketStatus) RequiresAssignee() bool {
	switch s {
	case TicketStatusAssigned, TicketStatusAccepted, TicketStatusInProgress, TicketStatusCompleted:
		return true
	}
	return false
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		c.AssignedTo = &v
	}
	if t.AcceptedAt != nil {
		v := *t.AcceptedAt
		c.AcceptedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.Photos != nil {
		c.Photos = append([]string(nil), t.Photos...)
	}
	return &c
}

// IsAssignedTo reports whether technicianID holds the ticket.
func (t *Ticket) IsAssignedTo(technicianID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == technicianID
}

// Assign binds an open ticket to a technician.
func (t *Ticket) Assign(technicianID string) error {
	if technicianID == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	if t.Status != TicketStatusOpen || t.AssignedTo != nil {
		return t.invalidTransition(TicketStatusAssigned)
	}
	t.AssignedTo = &technicianID
	t.Status = TicketStatusAssigned
	return nil
}

// Accept moves an assigned ticket to accepted on behalf of its technician.
func (t *Ticket) Accept(actorID string, now time.Time) error {
	if t.Status != TicketStatusAssigned {
		return t.invalidTransition(TicketStatusAccepted)
	}
	if !t.IsAssignedTo(actorID) {
		return apperrors.NewForbidden("only the assigned technician can accept this ticket")
	}
	t.Status = TicketStatusAccepted
	t.AcceptedAt = &now
	return nil
}

// Start marks accepted work as in progress.
func (t *Ticket) Start(actorID string) error {
	if t.Status != TicketStatusAccepted {
		return t.invalidTransition(TicketStatusInProgress)
	}
	if !t.IsAssignedTo(actorID) {
		return apperrors.NewForbidden("only the assigned technician can start this ticket")
	}
	t.Status = TicketStatusInProgress
	return nil
}

// Complete finishes an accepted or in-progress ticket.
func (t *Ticket) Complete(actorID string, now time.Time) error {
	if t.Status != TicketStatusAccepted && t.Status != TicketStatusInProgress {
		return t.invalidTransition(TicketStatusCompleted)
	}
	if !t.IsAssignedTo(actorID) {
		return apperrors.NewForbidden("only the assigned technician can complete this ticket")
	}
	t.Status = TicketStatusCompleted
	t.CompletedAt = &now
	return nil
}

func (t *Ticket) invalidTransition(to TicketStatus) error {
	return apperrors.NewInvalidTransition(
		fmt.Sprintf("ticket cannot move from %s to %s", t.Status, to),
		map[string]any{"ticket_id": t.ID, "from": t.Status, "to": to},
	)
}

// CheckInvariants verifies the assignee and timestamp rules of the lifecycle.
// Closed tickets are reached by administrative override and skip the assignee rule.
func (t *Ticket) CheckInvariants() error {
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.Status != TicketStatusClosed {
		if t.Status.RequiresAssignee() && t.AssignedTo == nil {
			return fmt.Errorf("status %s requires an assignee", t.Status)
		}
		if !t.Status.RequiresAssignee() && t.AssignedTo != nil {
			return fmt.Errorf("status %s must not carry an assignee", t.Status)
		}
	}
	if t.AcceptedAt != nil && !t.Status.AtLeast(TicketStatusAccepted) {
		return fmt.Errorf("accepted_at set at status %s", t.Status)
	}
	if t.CompletedAt != nil && !t.Status.AtLeast(TicketStatusCompleted) {
		return fmt.Errorf("completed_at set at status %s", t.Status)
	}
	return nil
}

// DisplayStatus is the coarse vocabulary used by list filters.
type DisplayStatus string

const (
	DisplayOpen       DisplayStatus = "open"
	DisplayInProgress DisplayStatus = "in-progress"
	DisplayResolved   DisplayStatus = "resolved"
	DisplayClosed     DisplayStatus = "closed"
)

// DisplayStatusOf maps a lifecycle status onto the display vocabulary.
func DisplayStatusOf(s TicketStatus) DisplayStatus {
	switch s {
	case TicketStatusOpen:
		return DisplayOpen
	case TicketStatusAssigned, TicketStatusAccepted, TicketStatusInProgress:
		return DisplayInProgress
	case TicketStatusCompleted:
		return DisplayResolved
	default:
		return DisplayClosed
	}
}

// StatusesForDisplay lists the lifecycle statuses grouped under d.
func StatusesForDisplay(d DisplayStatus) []TicketStatus {
	var out []TicketStatus
	for _, s := range []TicketStatus{
		TicketStatusOpen,
		TicketStatusAssigned,
		TicketStatusAccepted,
		TicketStatusInProgress,
		TicketStatusCompleted,
		TicketStatusClosed,
	} {
		if DisplayStatusOf(s) == d {
			out = append(out, s)
		}
	}
	return out
}
