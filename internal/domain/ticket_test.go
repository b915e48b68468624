package domain

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func openTicket() *Ticket {
	return &Ticket{ID: "T1", CustomerID: "C1", Title: "printer jam", Status: TicketStatusOpen}
}

func TestTicketLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ticket := openTicket()

	require.NoError(t, ticket.Assign("U7"))
	assert.Equal(t, TicketStatusAssigned, ticket.Status)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, "U7", *ticket.AssignedTo)

	require.NoError(t, ticket.Accept("U7", now))
	assert.Equal(t, TicketStatusAccepted, ticket.Status)
	require.NotNil(t, ticket.AcceptedAt)
	assert.True(t, ticket.AcceptedAt.Equal(now))

	require.NoError(t, ticket.Start("U7"))
	assert.Equal(t, TicketStatusInProgress, ticket.Status)

	require.NoError(t, ticket.Complete("U7", now.Add(time.Hour)))
	assert.Equal(t, TicketStatusCompleted, ticket.Status)
	require.NotNil(t, ticket.CompletedAt)
	assert.NoError(t, ticket.CheckInvariants())
}

func TestTicketAssignTwiceIsInvalidTransition(t *testing.T) {
	ticket := openTicket()
	require.NoError(t, ticket.Assign("U7"))

	err := ticket.Assign("U8")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))
	assert.True(t, errors.Is(err, apperrors.Kind(apperrors.CodeInvalidTransition)))
	assert.Equal(t, "U7", *ticket.AssignedTo)
}

func TestTicketCompleteDirectlyFromAccepted(t *testing.T) {
	now := time.Now()
	ticket := openTicket()
	require.NoError(t, ticket.Assign("U7"))
	require.NoError(t, ticket.Accept("U7", now))
	require.NoError(t, ticket.Complete("U7", now))
	assert.Equal(t, TicketStatusCompleted, ticket.Status)
}

func TestTicketTransitionGuards(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		setup func(*Ticket)
		act   func(*Ticket) error
		code  string
	}{
		{
			name:  "accept from open",
			setup: func(*Ticket) {},
			act:   func(tk *Ticket) error { return tk.Accept("U7", now) },
			code:  apperrors.CodeInvalidTransition,
		},
		{
			name:  "accept by another technician",
			setup: func(tk *Ticket) { _ = tk.Assign("U7") },
			act:   func(tk *Ticket) error { return tk.Accept("U9", now) },
			code:  apperrors.CodeForbidden,
		},
		{
			name: "accept twice",
			setup: func(tk *Ticket) {
				_ = tk.Assign("U7")
				_ = tk.Accept("U7", now)
			},
			act:  func(tk *Ticket) error { return tk.Accept("U7", now) },
			code: apperrors.CodeInvalidTransition,
		},
		{
			name:  "complete from assigned",
			setup: func(tk *Ticket) { _ = tk.Assign("U7") },
			act:   func(tk *Ticket) error { return tk.Complete("U7", now) },
			code:  apperrors.CodeInvalidTransition,
		},
		{
			name: "complete twice",
			setup: func(tk *Ticket) {
				_ = tk.Assign("U7")
				_ = tk.Accept("U7", now)
				_ = tk.Complete("U7", now)
			},
			act:  func(tk *Ticket) error { return tk.Complete("U7", now) },
			code: apperrors.CodeInvalidTransition,
		},
		{
			name:  "assign closed",
			setup: func(tk *Ticket) { tk.Status = TicketStatusClosed },
			act:   func(tk *Ticket) error { return tk.Assign("U7") },
			code:  apperrors.CodeInvalidTransition,
		},
		{
			name:  "assign without technician",
			setup: func(*Ticket) {},
			act:   func(tk *Ticket) error { return tk.Assign("") },
			code:  apperrors.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ticket := openTicket()
			tc.setup(ticket)
			before := ticket.Clone()

			err := tc.act(ticket)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
			assert.Equal(t, before, ticket, "failed transition must not mutate the ticket")
		})
	}
}

// Random transition sequences never break the assignee or timestamp rules
// and never move the status backwards.
func TestTicketInvariantsUnderRandomTransitions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	technicians := []string{"U1", "U2", "U3"}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for run := 0; run < 500; run++ {
		ticket := openTicket()
		for step := 0; step < 12; step++ {
			prev := ticket.Status
			tech := technicians[rng.Intn(len(technicians))]
			now := start.Add(time.Duration(step) * time.Minute)
			switch rng.Intn(4) {
			case 0:
				_ = ticket.Assign(tech)
			case 1:
				_ = ticket.Accept(tech, now)
			case 2:
				_ = ticket.Start(tech)
			case 3:
				_ = ticket.Complete(tech, now)
			}
			require.NoError(t, ticket.CheckInvariants(), "run %d step %d", run, step)
			require.True(t, ticket.Status.AtLeast(prev), "status moved backwards from %s to %s", prev, ticket.Status)
		}
	}
}

func TestCheckInvariantsRejectsInconsistentTickets(t *testing.T) {
	tech := "U7"
	now := time.Now()

	assert.Error(t, (&Ticket{Status: TicketStatusOpen, AssignedTo: &tech}).CheckInvariants())
	assert.Error(t, (&Ticket{Status: TicketStatusAccepted}).CheckInvariants())
	assert.Error(t, (&Ticket{Status: TicketStatusAssigned, AssignedTo: &tech, AcceptedAt: &now}).CheckInvariants())
	assert.Error(t, (&Ticket{Status: TicketStatusAccepted, AssignedTo: &tech, CompletedAt: &now}).CheckInvariants())
	assert.Error(t, (&Ticket{Status: "resolved"}).CheckInvariants())
	assert.NoError(t, (&Ticket{Status: TicketStatusClosed}).CheckInvariants())
}

func TestDisplayStatusMapping(t *testing.T) {
	assert.Equal(t, DisplayOpen, DisplayStatusOf(TicketStatusOpen))
	assert.Equal(t, DisplayInProgress, DisplayStatusOf(TicketStatusAssigned))
	assert.Equal(t, DisplayInProgress, DisplayStatusOf(TicketStatusAccepted))
	assert.Equal(t, DisplayInProgress, DisplayStatusOf(TicketStatusInProgress))
	assert.Equal(t, DisplayResolved, DisplayStatusOf(TicketStatusCompleted))
	assert.Equal(t, DisplayClosed, DisplayStatusOf(TicketStatusClosed))

	assert.Equal(t,
		[]TicketStatus{TicketStatusAssigned, TicketStatusAccepted, TicketStatusInProgress},
		StatusesForDisplay(DisplayInProgress))
	assert.Empty(t, StatusesForDisplay("archived"))
}

func TestCloneIsDeep(t *testing.T) {
	ticket := openTicket()
	ticket.Photos = []string{"a.jpg"}
	require.NoError(t, ticket.Assign("U7"))

	c := ticket.Clone()
	*c.AssignedTo = "U8"
	c.Photos[0] = "b.jpg"

	assert.Equal(t, "U7", *ticket.AssignedTo)
	assert.Equal(t, "a.jpg", ticket.Photos[0])
}
