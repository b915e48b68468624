package desk

import (
	"sync"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// Pagination mirrors the list metadata returned with every ticket page.
type Pagination struct {
	CurrentPage int
	PerPage     int
	Total       int
	LastPage    int
}

// HasNext reports whether a later page exists.
func (p Pagination) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

// TicketQuery narrows a ticket list request.
type TicketQuery struct {
	Page       int
	PerPage    int
	Statuses   []domain.TicketStatus
	Display    domain.DisplayStatus
	AssignedTo string
	CustomerID string
	Search     string
}

// TicketPage is one page of tickets with its metadata.
type TicketPage struct {
	Tickets    []domain.Ticket
	Pagination Pagination
}

// FilterByDisplay keeps tickets whose lifecycle status falls in display.
// An empty display keeps everything.
func FilterByDisplay(tickets []domain.Ticket, display domain.DisplayStatus) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if display == "" || domain.DisplayStatusOf(t.Status) == display {
			out = append(out, t)
		}
	}
	return out
}

// TicketProjection is the local read model of the ticket list.
type TicketProjection struct {
	mu         sync.RWMutex
	order      []string
	byID       map[string]*domain.Ticket
	pagination Pagination
}

func NewTicketProjection() *TicketProjection {
	return &TicketProjection{byID: make(map[string]*domain.Ticket)}
}

// Replace swaps in a freshly loaded page. Entries already further along the
// lifecycle than the page reports are kept, since the page may have been read
// before a confirmed write.
func (p *TicketProjection) Replace(page TicketPage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]*domain.Ticket, len(page.Tickets))
	order := make([]string, 0, len(page.Tickets))
	for i := range page.Tickets {
		incoming := page.Tickets[i].Clone()
		if current, found := p.byID[incoming.ID]; found && newer(current, incoming) {
			incoming = current
		}
		if _, dup := next[incoming.ID]; !dup {
			order = append(order, incoming.ID)
		}
		next[incoming.ID] = incoming
	}
	p.byID = next
	p.order = order
	p.pagination = page.Pagination
}

// Apply merges one ticket by id. It returns false when the projection already
// holds a later state for that ticket.
func (p *TicketProjection) Apply(t *domain.Ticket) bool {
	if t == nil || t.ID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	current, found := p.byID[t.ID]
	if found && newer(current, t) {
		return false
	}
	if !found {
		p.order = append(p.order, t.ID)
	}
	p.byID[t.ID] = t.Clone()
	return true
}

// Get returns a copy of the ticket with id.
func (p *TicketProjection) Get(id string) (*domain.Ticket, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, found := p.byID[id]
	if !found {
		return nil, false
	}
	return t.Clone(), true
}

// List returns the tickets in load order, filtered by display status.
func (p *TicketProjection) List(display domain.DisplayStatus) []domain.Ticket {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.byID[id].Clone())
	}
	return FilterByDisplay(out, display)
}

func (p *TicketProjection) Pagination() Pagination {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pagination
}

// newer reports whether current has moved past incoming.
func newer(current, incoming *domain.Ticket) bool {
	if current.Status == incoming.Status {
		return current.UpdatedAt.After(incoming.UpdatedAt)
	}
	return current.Status.AtLeast(incoming.Status)
}
