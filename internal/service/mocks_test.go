package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/inventory"
	"github.com/spec-kit/servicedesk/internal/repository"
)

type mockTicketRepo struct{ mock.Mock }

func (m *mockTicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTicketRepo) List(ctx context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	args := m.Called(ctx, f)
	t, _ := args.Get(0).([]domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTicketRepo) Count(ctx context.Context, f repository.TicketFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *mockTicketRepo) SaveTransition(ctx context.Context, t *domain.Ticket, from domain.TicketStatus) error {
	return m.Called(ctx, t, from).Error(0)
}

func (m *mockTicketRepo) SaveAcceptance(ctx context.Context, t *domain.Ticket, from domain.TicketStatus, manifest inventory.Manifest) error {
	return m.Called(ctx, t, from, manifest).Error(0)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, f repository.UserFilter) ([]domain.User, error) {
	args := m.Called(ctx, f)
	u, _ := args.Get(0).([]domain.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) Count(ctx context.Context, f repository.UserFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

type mockHistoryRepo struct{ mock.Mock }

func (m *mockHistoryRepo) Create(ctx context.Context, h *domain.TicketHistory) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockHistoryRepo) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	args := m.Called(ctx, ticketID, limit, offset)
	h, _ := args.Get(0).([]domain.TicketHistory)
	return h, args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) List(ctx context.Context) ([]domain.InventoryItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]domain.InventoryItem)
	return items, args.Error(1)
}

func (m *mockCatalog) Invalidate(ctx context.Context) {
	m.Called(ctx)
}

type mockInventoryRepo struct{ mock.Mock }

func (m *mockInventoryRepo) Create(ctx context.Context, item *domain.InventoryItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockInventoryRepo) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*domain.InventoryItem)
	return item, args.Error(1)
}

func (m *mockInventoryRepo) List(ctx context.Context) ([]domain.InventoryItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]domain.InventoryItem)
	return items, args.Error(1)
}

func (m *mockInventoryRepo) AdjustQuantity(ctx context.Context, id string, delta int) (*domain.InventoryItem, error) {
	args := m.Called(ctx, id, delta)
	item, _ := args.Get(0).(*domain.InventoryItem)
	return item, args.Error(1)
}

func (m *mockInventoryRepo) ListUsageByTicket(ctx context.Context, ticketID string) ([]domain.InventoryUsage, error) {
	args := m.Called(ctx, ticketID)
	u, _ := args.Get(0).([]domain.InventoryUsage)
	return u, args.Error(1)
}

type mockAMCRepo struct{ mock.Mock }

func (m *mockAMCRepo) Create(ctx context.Context, c *domain.AMCContract) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockAMCRepo) GetByID(ctx context.Context, id string) (*domain.AMCContract, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.AMCContract)
	return c, args.Error(1)
}

func (m *mockAMCRepo) GetOccurrence(ctx context.Context, id string) (*domain.MaintenanceOccurrence, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.MaintenanceOccurrence)
	return o, args.Error(1)
}

func (m *mockAMCRepo) SaveOccurrenceAssignment(ctx context.Context, o *domain.MaintenanceOccurrence) error {
	return m.Called(ctx, o).Error(0)
}

// captureDispatcher records published events.
type captureDispatcher struct {
	published []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, e events.Event) error {
	d.published = append(d.published, e)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) types() []events.EventType {
	out := make([]events.EventType, 0, len(d.published))
	for _, e := range d.published {
		out = append(out, e.Type)
	}
	return out
}
