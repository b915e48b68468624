package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

type stubUsers struct {
	repository.UserRepository
	byID map[string]*domain.User
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, found := s.byID[id]; found {
		return u, nil
	}
	return nil, apperrors.NewNotFound("user", nil)
}

type mockTickets struct{ mock.Mock }

func (m *mockTickets) CreateTicket(ctx context.Context, actor *domain.User, input service.TicketCreateInput) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, input)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTickets) GetTicket(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTickets) ListTickets(ctx context.Context, actor *domain.User, filter service.TicketListFilter) (*service.TicketPage, error) {
	args := m.Called(ctx, actor, filter)
	p, _ := args.Get(0).(*service.TicketPage)
	return p, args.Error(1)
}

func (m *mockTickets) ListCustomerTickets(ctx context.Context, actor *domain.User, customerID string, filter service.TicketListFilter) (*service.TicketPage, error) {
	args := m.Called(ctx, actor, customerID, filter)
	p, _ := args.Get(0).(*service.TicketPage)
	return p, args.Error(1)
}

func (m *mockTickets) ListHistory(ctx context.Context, actor *domain.User, id string, limit, offset int) ([]domain.TicketHistory, error) {
	args := m.Called(ctx, actor, id, limit, offset)
	h, _ := args.Get(0).([]domain.TicketHistory)
	return h, args.Error(1)
}

func (m *mockTickets) AssignTicket(ctx context.Context, actor *domain.User, id, techID string) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, id, techID)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTickets) AcceptTicket(ctx context.Context, actor *domain.User, id string, lines []inventory.Line, note string) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, id, lines, note)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTickets) StartTicket(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

func (m *mockTickets) CompleteTicket(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, id)
	t, _ := args.Get(0).(*domain.Ticket)
	return t, args.Error(1)
}

type mockInventory struct{ mock.Mock }

func (m *mockInventory) ListCatalog(ctx context.Context) ([]domain.InventoryItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]domain.InventoryItem)
	return items, args.Error(1)
}

func (m *mockInventory) CreateItem(ctx context.Context, input service.InventoryItemInput) (*domain.InventoryItem, error) {
	args := m.Called(ctx, input)
	item, _ := args.Get(0).(*domain.InventoryItem)
	return item, args.Error(1)
}

func (m *mockInventory) AdjustQuantity(ctx context.Context, actor *domain.User, id string, delta int) (*domain.InventoryItem, error) {
	args := m.Called(ctx, actor, id, delta)
	item, _ := args.Get(0).(*domain.InventoryItem)
	return item, args.Error(1)
}

func (m *mockInventory) ListUsage(ctx context.Context, ticketID string) ([]domain.InventoryUsage, error) {
	args := m.Called(ctx, ticketID)
	usage, _ := args.Get(0).([]domain.InventoryUsage)
	return usage, args.Error(1)
}

type mockAMC struct{ mock.Mock }

func (m *mockAMC) CreateContract(ctx context.Context, actor *domain.User, contract *domain.AMCContract) (*domain.AMCContract, error) {
	args := m.Called(ctx, actor, contract)
	c, _ := args.Get(0).(*domain.AMCContract)
	return c, args.Error(1)
}

func (m *mockAMC) GetContract(ctx context.Context, id string) (*domain.AMCContract, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.AMCContract)
	return c, args.Error(1)
}

func (m *mockAMC) AssignTechnician(ctx context.Context, actor *domain.User, occID, techID string) (*domain.MaintenanceOccurrence, error) {
	args := m.Called(ctx, actor, occID, techID)
	o, _ := args.Get(0).(*domain.MaintenanceOccurrence)
	return o, args.Error(1)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) ListUsers(ctx context.Context, filter service.UserListFilter) (*service.UserPage, error) {
	args := m.Called(ctx, filter)
	p, _ := args.Get(0).(*service.UserPage)
	return p, args.Error(1)
}

func (m *mockUserService) CreateUser(ctx context.Context, input service.UserCreateInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type testServer struct {
	app       *fiber.App
	tokens    *auth.TokenManager
	tickets   *mockTickets
	inventory *mockInventory
	amc       *mockAMC
	users     *mockUserService
}

var (
	adminUser    = &domain.User{ID: "admin-1", Name: "Ada", Role: domain.UserRoleAdmin, Active: true}
	techUser     = &domain.User{ID: "tech-1", Name: "Tom", Role: domain.UserRoleTechnician, Active: true}
	customerUser = &domain.User{ID: "cust-1", Name: "Cy", Role: domain.UserRoleCustomer, Active: true}
)

func newTestServer(t *testing.T, limits config.RateLimitConfig) *testServer {
	t.Helper()
	ts := &testServer{
		tokens:    auth.NewTokenManager("test-secret", 5),
		tickets:   &mockTickets{},
		inventory: &mockInventory{},
		amc:       &mockAMC{},
		users:     &mockUserService{},
	}
	users := &stubUsers{byID: map[string]*domain.User{
		adminUser.ID:    adminUser,
		techUser.ID:     techUser,
		customerUser.ID: customerUser,
	}}
	validator := dto.NewValidator()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	ts.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(ts.app, logger, metrics, time.Second, limits)
	RegisterRoutes(ts.app, RouteConfig{
		Health:         handlers.NewHealthHandler("servicedesk", "test", nil, metrics),
		Users:          handlers.NewUsersHandler(ts.users, nil, validator),
		Tickets:        handlers.NewTicketsHandler(ts.tickets, validator, config.UploadConfig{Dir: t.TempDir(), MaxPhotos: 5, MaxPhotoSize: 1 << 20}),
		Inventory:      handlers.NewInventoryHandler(ts.inventory, validator),
		AMC:            handlers.NewAMCHandler(ts.amc, validator),
		AuthMiddleware: auth.NewAuthMiddleware(ts.tokens, users),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, user *domain.User, body string) (int, map[string]any, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, _, err := ts.tokens.GenerateToken(user.ID, user.Role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded, raw
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	assert.Equal(t, false, body["success"])
	errBody, isMap := body["error"].(map[string]any)
	require.True(t, isMap, "error body missing: %v", body)
	code, _ := errBody["code"].(string)
	return code
}

func TestRoutesRequireAuthentication(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})

	status, body, _ := ts.do(t, "GET", "/tickets", nil, "")
	assert.Equal(t, 401, status)
	assert.Equal(t, apperrors.CodeUnauthorized, errorCode(t, body))
	assert.NotEmpty(t, body["message"])

	status, _, _ = ts.do(t, "GET", "/health/live", nil, "")
	assert.Equal(t, 200, status)
}

func TestRoutesEnforceRoles(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})

	status, body, _ := ts.do(t, "POST", "/tickets/t-1/assign", customerUser, `{"technician_id":"tech-1"}`)
	assert.Equal(t, 403, status)
	assert.Equal(t, apperrors.CodeForbidden, errorCode(t, body))

	status, _, _ = ts.do(t, "POST", "/tickets/t-1/accept", adminUser, `{"manifest":{"items":[]}}`)
	assert.Equal(t, 403, status)
	ts.tickets.AssertNotCalled(t, "AssignTicket", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignTicketRepliesWithoutData(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	tech := "tech-1"
	ts.tickets.On("AssignTicket", mock.Anything, adminUser, "t-1", "tech-1").
		Return(&domain.Ticket{ID: "t-1", Status: domain.TicketStatusAssigned, AssignedTo: &tech}, nil)

	status, body, _ := ts.do(t, "POST", "/tickets/t-1/assign", adminUser, `{"technician_id":"tech-1"}`)
	require.Equal(t, 200, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Ticket assigned", body["message"])
	_, hasData := body["data"]
	assert.False(t, hasData)
}

func TestAssignTicketValidatesPayload(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})

	status, body, _ := ts.do(t, "POST", "/tickets/t-1/assign", adminUser, `{}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "required", details["technician_id"])
}

func TestAcceptTicketPassesManifest(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	tech := "tech-1"
	lines := []inventory.Line{{ItemID: "inv-1", Quantity: 2}}
	ts.tickets.On("AcceptTicket", mock.Anything, techUser, "t-1", lines, "spare fan").
		Return(&domain.Ticket{ID: "t-1", Status: domain.TicketStatusAccepted, AssignedTo: &tech}, nil)

	status, body, _ := ts.do(t, "POST", "/tickets/t-1/accept", techUser,
		`{"manifest":{"items":[{"inventory_id":"inv-1","quantity":2}],"note":"spare fan"}}`)
	require.Equal(t, 200, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "accepted", data["status"])
	assert.Equal(t, "in-progress", data["display_status"])
}

func TestAcceptTicketStaleWrite(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	ts.tickets.On("AcceptTicket", mock.Anything, techUser, "t-1", mock.Anything, "").
		Return(nil, apperrors.NewInvalidTransition("ticket is no longer assigned", nil))

	status, body, _ := ts.do(t, "POST", "/tickets/t-1/accept", techUser, `{"manifest":{"items":[]}}`)
	assert.Equal(t, 409, status)
	assert.Equal(t, apperrors.CodeInvalidTransition, errorCode(t, body))
	assert.Equal(t, "ticket is no longer assigned", body["message"])
}

func TestListTicketsParsesQuery(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	ts.tickets.On("ListTickets", mock.Anything, adminUser, mock.MatchedBy(func(f service.TicketListFilter) bool {
		return len(f.Statuses) == 2 && f.Statuses[1] == domain.TicketStatusAssigned &&
			f.SearchTerm != nil && *f.SearchTerm == "printer" && f.Page == 2
	})).Return(&service.TicketPage{
		Tickets:    []domain.Ticket{{ID: "t-1", Status: domain.TicketStatusOpen}},
		Pagination: service.Pagination{Page: 2, PerPage: 15, Total: 16, LastPage: 2},
	}, nil)

	status, body, _ := ts.do(t, "GET", "/tickets?status=open,assigned&q=printer&page=2", adminUser, "")
	require.Equal(t, 200, status)
	page := body["data"].(map[string]any)
	assert.EqualValues(t, 2, page["current_page"])
	assert.EqualValues(t, 2, page["last_page"])
	assert.Len(t, page["data"], 1)
}

func TestInventoryCatalogIsBareArray(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	ts.inventory.On("ListCatalog", mock.Anything).Return([]domain.InventoryItem{
		{ID: "inv-1", ProductName: "Fan", AvailableQuantity: 4},
	}, nil)

	status, _, raw := ts.do(t, "GET", "/inventory", techUser, "")
	require.Equal(t, 200, status)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "inv-1", items[0]["id"])

	status, _, _ = ts.do(t, "GET", "/inventory", customerUser, "")
	assert.Equal(t, 403, status)
}

func TestListUsersNestsPage(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	ts.users.On("ListUsers", mock.Anything, mock.MatchedBy(func(f service.UserListFilter) bool {
		return f.Role != nil && *f.Role == domain.UserRoleTechnician
	})).Return(&service.UserPage{
		Users:      []domain.User{*techUser},
		Pagination: service.Pagination{Page: 1, PerPage: 15, Total: 1, LastPage: 1},
	}, nil)

	status, body, _ := ts.do(t, "GET", "/users?role=technician", adminUser, "")
	require.Equal(t, 200, status)
	users := body["users"].(map[string]any)
	assert.Len(t, users["data"], 1)
	assert.EqualValues(t, 1, users["total"])
}

func TestAssignMaintenanceRepliesWithStatus(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})
	ts.amc.On("AssignTechnician", mock.Anything, adminUser, "occ-1", "tech-1").
		Return(&domain.MaintenanceOccurrence{ID: "occ-1"}, nil)

	status, body, _ := ts.do(t, "POST", "/amc/maintenances/occ-1/assign", adminUser, `{"technician_id":"tech-1"}`)
	require.Equal(t, 200, status)
	assert.Equal(t, "success", body["status"])
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{})

	status, body, _ := ts.do(t, "GET", "/nowhere", adminUser, "")
	assert.Equal(t, 404, status)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, body))
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	ts := newTestServer(t, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})

	status, _, _ := ts.do(t, "GET", "/health/live", nil, "")
	assert.Equal(t, 200, status)
	status, body, _ := ts.do(t, "GET", "/health/live", nil, "")
	assert.Equal(t, 429, status)
	assert.Equal(t, apperrors.CodeRateLimited, errorCode(t, body))
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(0.001), 1)
	assert.True(t, rl.limiter("10.0.0.1").Allow())
	assert.False(t, rl.limiter("10.0.0.1").Allow())
	assert.True(t, rl.limiter("10.0.0.2").Allow())
}
