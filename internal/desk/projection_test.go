package desk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
)

func TestProjectionAppliesByID(t *testing.T) {
	p := NewTicketProjection()
	p.Replace(TicketPage{
		Tickets: []domain.Ticket{
			{ID: "T1", Status: domain.TicketStatusOpen},
			{ID: "T2", Status: domain.TicketStatusOpen},
		},
		Pagination: Pagination{CurrentPage: 1, PerPage: 2, Total: 3, LastPage: 2},
	})
	assert.True(t, p.Pagination().HasNext())

	assigned := &domain.Ticket{ID: "T2", Status: domain.TicketStatusAssigned, AssignedTo: strPtr("tech-1")}
	assert.True(t, p.Apply(assigned))
	assert.False(t, p.Apply(&domain.Ticket{ID: "T2", Status: domain.TicketStatusOpen}), "late older response is ignored")

	got, found := p.Get("T2")
	require.True(t, found)
	assert.Equal(t, domain.TicketStatusAssigned, got.Status)

	got.Status = domain.TicketStatusClosed
	again, _ := p.Get("T2")
	assert.Equal(t, domain.TicketStatusAssigned, again.Status, "Get returns a copy")

	ids := []string{}
	for _, tk := range p.List("") {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"T1", "T2"}, ids)
}

func TestProjectionReplaceKeepsConfirmedProgress(t *testing.T) {
	p := NewTicketProjection()
	p.Apply(&domain.Ticket{ID: "T1", Status: domain.TicketStatusAccepted, AssignedTo: strPtr("tech-1")})

	p.Replace(TicketPage{Tickets: []domain.Ticket{{ID: "T1", Status: domain.TicketStatusAssigned, AssignedTo: strPtr("tech-1")}}})
	got, _ := p.Get("T1")
	assert.Equal(t, domain.TicketStatusAccepted, got.Status)

	now := time.Now()
	p.Replace(TicketPage{Tickets: []domain.Ticket{{ID: "T1", Status: domain.TicketStatusAccepted, AssignedTo: strPtr("tech-1"), UpdatedAt: now}}})
	got, _ = p.Get("T1")
	assert.Equal(t, now, got.UpdatedAt)
}

func TestFilterByDisplay(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: "a", Status: domain.TicketStatusOpen},
		{ID: "b", Status: domain.TicketStatusAssigned},
		{ID: "c", Status: domain.TicketStatusInProgress},
		{ID: "d", Status: domain.TicketStatusCompleted},
	}
	inProgress := FilterByDisplay(tickets, domain.DisplayInProgress)
	require.Len(t, inProgress, 2)
	assert.Equal(t, "b", inProgress[0].ID)
	assert.Equal(t, "c", inProgress[1].ID)

	resolved := FilterByDisplay(tickets, domain.DisplayResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "d", resolved[0].ID)

	assert.Len(t, FilterByDisplay(tickets, ""), 4)
}
