package desk

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
)

type mockBackend struct{ mock.Mock }

func (m *mockBackend) ListTechnicians(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockBackend) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockBackend) ListTickets(ctx context.Context, query TicketQuery) (*TicketPage, error) {
	args := m.Called(ctx, query)
	p, _ := args.Get(0).(*TicketPage)
	return p, args.Error(1)
}

func (m *mockBackend) AssignTicket(ctx context.Context, id, techID string) (*domain.Ticket, error) {
	args := m.Called(ctx, id, techID)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockBackend) AcceptTicket(ctx context.Context, id string, manifest inventory.Manifest) (*domain.Ticket, error) {
	args := m.Called(ctx, id, manifest)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockBackend) StartTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockBackend) CompleteTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockBackend) ListCatalog(ctx context.Context) ([]domain.InventoryItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]domain.InventoryItem)
	return items, args.Error(1)
}

func (m *mockBackend) CreateContract(ctx context.Context, c *domain.AMCContract) (*domain.AMCContract, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).(*domain.AMCContract)
	return out, args.Error(1)
}

func (m *mockBackend) GetContract(ctx context.Context, id string) (*domain.AMCContract, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*domain.AMCContract)
	return out, args.Error(1)
}

func (m *mockBackend) AssignMaintenance(ctx context.Context, occID, techID string) error {
	return m.Called(ctx, occID, techID).Error(0)
}

func strPtr(s string) *string { return &s }

var technicians = []domain.User{
	{ID: "tech-1", Name: "Tara", Role: domain.UserRoleTechnician, Active: true},
	{ID: "U7", Name: "Umar", Role: domain.UserRoleTechnician, Active: true},
	{ID: "tech-off", Name: "Otto", Role: domain.UserRoleTechnician},
	{ID: "admin-1", Name: "Ada", Role: domain.UserRoleAdmin, Active: true},
}
