package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/desk"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

var (
	_ desk.TicketBackend   = (*Client)(nil)
	_ desk.ContractBackend = (*Client)(nil)
)

const technicianPageSize = 100

// Photo is an image attached to a new ticket.
type Photo struct {
	Name    string
	Content []byte
}

// NewTicket is the input of CreateTicket.
type NewTicket struct {
	CustomerID  string
	Title       string
	Description string
	Priority    domain.TicketPriority
	Photos      []Photo
}

// Session is the result of a successful login.
type Session struct {
	Token string
	User  domain.User
}

func escape(id string) string {
	return url.PathEscape(id)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	env, body, err := c.call(ctx, request{
		method: fiber.MethodPost,
		path:   "/auth/login",
		body:   dto.LoginRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	var resp dto.LoginResponse
	if err := decodeData(env, body, &resp); err != nil {
		return nil, err
	}
	return &Session{Token: resp.Token, User: resp.User.ToDomain()}, nil
}

// CreateTicket files a ticket as multipart form data with optional photos.
func (c *Client) CreateTicket(ctx context.Context, input NewTicket) (*domain.Ticket, error) {
	env, body, err := c.call(ctx, request{
		method: fiber.MethodPost,
		path:   "/create-ticket",
		form: func(agent *fiber.Agent) {
			args := fiber.AcquireArgs()
			defer fiber.ReleaseArgs(args)
			args.Set("customer_id", input.CustomerID)
			args.Set("title", input.Title)
			args.Set("description", input.Description)
			if input.Priority != "" {
				args.Set("priority", string(input.Priority))
			}
			for _, p := range input.Photos {
				agent.FileData(&fiber.FormFile{Fieldname: "photos[]", Name: p.Name, Content: p.Content})
			}
			agent.MultipartForm(args)
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeTicket(env, body)
}

func (c *Client) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	env, body, err := c.call(ctx, request{method: fiber.MethodGet, path: "/tickets/" + escape(ticketID)})
	if err != nil {
		return nil, err
	}
	return decodeTicket(env, body)
}

// ListTickets reads one page. A CustomerID narrows the call to that
// customer's tickets.
func (c *Client) ListTickets(ctx context.Context, query desk.TicketQuery) (*desk.TicketPage, error) {
	path := "/tickets"
	if query.CustomerID != "" {
		path = "/tickets-customer/" + escape(query.CustomerID)
	}
	env, body, err := c.call(ctx, request{method: fiber.MethodGet, path: path + ticketQueryString(query)})
	if err != nil {
		return nil, err
	}
	var page dto.Page[dto.TicketResponse]
	if err := decodeData(env, body, &page); err != nil {
		return nil, err
	}
	out := &desk.TicketPage{
		Tickets: make([]domain.Ticket, 0, len(page.Data)),
		Pagination: desk.Pagination{
			CurrentPage: page.CurrentPage,
			PerPage:     page.PerPage,
			Total:       page.Total,
			LastPage:    page.LastPage,
		},
	}
	for _, t := range page.Data {
		out.Tickets = append(out.Tickets, *t.ToDomain())
	}
	return out, nil
}

func ticketQueryString(q desk.TicketQuery) string {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, s := range q.Statuses {
			statuses = append(statuses, string(s))
		}
		values.Set("status", strings.Join(statuses, ","))
	}
	if q.Display != "" {
		values.Set("display_status", string(q.Display))
	}
	if q.AssignedTo != "" {
		values.Set("assigned_to", q.AssignedTo)
	}
	if q.Search != "" {
		values.Set("q", q.Search)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// AssignTicket returns a nil ticket when the backend replies without data.
func (c *Client) AssignTicket(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error) {
	env, body, err := c.call(ctx, request{
		method: fiber.MethodPost,
		path:   "/tickets/" + escape(ticketID) + "/assign",
		body:   dto.AssignTicketRequest{TechnicianID: technicianID},
	})
	if err != nil || !hasData(env) {
		return nil, err
	}
	return decodeTicket(env, body)
}

func (c *Client) AcceptTicket(ctx context.Context, ticketID string, manifest inventory.Manifest) (*domain.Ticket, error) {
	req := dto.AcceptTicketRequest{Manifest: dto.ManifestRequest{
		Items: make([]dto.ManifestLineRequest, 0),
		Note:  manifest.Note(),
	}}
	for _, line := range manifest.Lines() {
		req.Manifest.Items = append(req.Manifest.Items, dto.ManifestLineRequest{InventoryID: line.ItemID, Quantity: line.Quantity})
	}
	return c.ticketAction(ctx, ticketID, "accept", req)
}

func (c *Client) StartTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return c.ticketAction(ctx, ticketID, "start", nil)
}

func (c *Client) CompleteTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return c.ticketAction(ctx, ticketID, "complete", nil)
}

func (c *Client) ticketAction(ctx context.Context, ticketID, action string, payload any) (*domain.Ticket, error) {
	env, body, err := c.call(ctx, request{
		method: fiber.MethodPost,
		path:   "/tickets/" + escape(ticketID) + "/" + action,
		body:   payload,
	})
	if err != nil || !hasData(env) {
		return nil, err
	}
	return decodeTicket(env, body)
}

func decodeTicket(env *envelope, body []byte) (*domain.Ticket, error) {
	var resp dto.TicketResponse
	if err := decodeData(env, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperrors.NewInternalError(nil)
	}
	return resp.ToDomain(), nil
}

// ListTechnicians walks every page of active technicians.
func (c *Client) ListTechnicians(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	for page := 1; ; page++ {
		values := url.Values{}
		values.Set("role", string(domain.UserRoleTechnician))
		values.Set("active", "true")
		values.Set("page", strconv.Itoa(page))
		values.Set("per_page", strconv.Itoa(technicianPageSize))
		env, body, err := c.call(ctx, request{method: fiber.MethodGet, path: "/users?" + values.Encode()})
		if err != nil {
			return nil, err
		}
		var result dto.Page[dto.UserResponse]
		if len(env.Users) > 0 {
			env = &envelope{Data: env.Users}
		}
		if err := decodeData(env, body, &result); err != nil {
			return nil, err
		}
		for _, u := range result.Data {
			users = append(users, u.ToDomain())
		}
		if page >= result.LastPage || len(result.Data) == 0 {
			return users, nil
		}
	}
}

// ListCatalog reads the inventory catalog, a bare JSON array.
func (c *Client) ListCatalog(ctx context.Context) ([]domain.InventoryItem, error) {
	env, body, err := c.call(ctx, request{method: fiber.MethodGet, path: "/inventory"})
	if err != nil {
		return nil, err
	}
	var items []dto.InventoryItemResponse
	if err := decodeData(env, body, &items); err != nil {
		return nil, err
	}
	out := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.ToDomain())
	}
	return out, nil
}

func (c *Client) CreateContract(ctx context.Context, contract *domain.AMCContract) (*domain.AMCContract, error) {
	req := dto.CreateContractRequest{
		BranchID:     contract.BranchID,
		CustomerID:   contract.CustomerID,
		ContractType: contract.ContractType,
		PurchaseDate: contract.PurchaseDate.Format(dto.DateLayout),
		Amount:       contract.Amount,
		Notes:        contract.Notes,
	}
	if contract.WarrantyEndsAt != nil {
		end := contract.WarrantyEndsAt.Format(dto.DateLayout)
		req.WarrantyEndDate = &end
	}
	for _, occ := range contract.Occurrences {
		req.Maintenances = append(req.Maintenances, dto.MaintenanceRequest{
			ScheduledDate: occ.ScheduledDate.Format(dto.DateLayout),
			Note:          occ.Note,
			Status:        string(occ.Status),
		})
	}
	env, body, err := c.call(ctx, request{method: fiber.MethodPost, path: "/amc", body: req})
	if err != nil {
		return nil, err
	}
	return decodeContract(env, body)
}

func (c *Client) GetContract(ctx context.Context, contractID string) (*domain.AMCContract, error) {
	env, body, err := c.call(ctx, request{method: fiber.MethodGet, path: "/amc/" + escape(contractID)})
	if err != nil {
		return nil, err
	}
	return decodeContract(env, body)
}

func decodeContract(env *envelope, body []byte) (*domain.AMCContract, error) {
	var resp dto.ContractResponse
	if err := decodeData(env, body, &resp); err != nil {
		return nil, err
	}
	contract, err := resp.ToDomain()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return contract, nil
}

// AssignMaintenance binds a technician to a visit. The reply is {status, message}.
func (c *Client) AssignMaintenance(ctx context.Context, occurrenceID, technicianID string) error {
	_, _, err := c.call(ctx, request{
		method: fiber.MethodPost,
		path:   "/amc/maintenances/" + escape(occurrenceID) + "/assign",
		body:   dto.AssignMaintenanceRequest{TechnicianID: technicianID},
	})
	return err
}
