package handlers

import (
	"context"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TicketService is what the ticket endpoints need from the service layer.
type TicketService interface {
	CreateTicket(ctx context.Context, actor *domain.User, input service.TicketCreateInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, actor *domain.User, filter service.TicketListFilter) (*service.TicketPage, error)
	ListCustomerTickets(ctx context.Context, actor *domain.User, customerID string, filter service.TicketListFilter) (*service.TicketPage, error)
	ListHistory(ctx context.Context, actor *domain.User, ticketID string, limit, offset int) ([]domain.TicketHistory, error)
	AssignTicket(ctx context.Context, actor *domain.User, ticketID, technicianID string) (*domain.Ticket, error)
	AcceptTicket(ctx context.Context, actor *domain.User, ticketID string, lines []inventory.Line, note string) (*domain.Ticket, error)
	StartTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error)
	CompleteTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error)
}

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service   TicketService
	validator *dto.Validator
	uploads   config.UploadConfig
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketService, validator *dto.Validator, uploads config.UploadConfig) *TicketsHandler {
	return &TicketsHandler{service: ticketService, validator: validator, uploads: uploads}
}

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// CreateTicket POST /create-ticket (multipart, photos[] optional).
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}

	photos, err := h.collectPhotos(c)
	if err != nil {
		return err
	}
	stored := make([]string, 0, len(photos))
	for _, fh := range photos {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		if err := c.SaveFile(fh, filepath.Join(h.uploads.Dir, name)); err != nil {
			return apperrors.NewInternalError(err)
		}
		stored = append(stored, name)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), user, service.TicketCreateInput{
		CustomerID:  req.CustomerID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Photos:      stored,
	})
	if err != nil {
		return err
	}
	return created(c, "Ticket created", dto.TicketFromDomain(ticket))
}

func (h *TicketsHandler) collectPhotos(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid multipart form", nil)
	}
	photos := append(form.File["photos"], form.File["photos[]"]...)
	if h.uploads.MaxPhotos > 0 && len(photos) > h.uploads.MaxPhotos {
		return nil, apperrors.NewValidationError("too many photos", map[string]any{"photos": "at most " + itoa(h.uploads.MaxPhotos)})
	}
	for i, fh := range photos {
		if !allowedPhotoTypes[fh.Header.Get(fiber.HeaderContentType)] {
			return nil, apperrors.NewValidationError("unsupported photo type", map[string]any{"photos[" + itoa(i) + "]": "must be jpeg, png, webp or gif"})
		}
		if h.uploads.MaxPhotoSize > 0 && fh.Size > h.uploads.MaxPhotoSize {
			return nil, apperrors.NewValidationError("photo too large", map[string]any{"photos[" + itoa(i) + "]": "too large"})
		}
	}
	return photos, nil
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), user, parseTicketQuery(c))
	if err != nil {
		return err
	}
	return ok(c, "", ticketPage(page))
}

// ListCustomerTickets GET /tickets-customer/:id.
func (h *TicketsHandler) ListCustomerTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListCustomerTickets(c.UserContext(), user, c.Params("id"), parseTicketQuery(c))
	if err != nil {
		return err
	}
	return ok(c, "", ticketPage(page))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "", dto.TicketFromDomain(ticket))
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), 100)
	offset := parseInt(c.Query("offset"), 0)
	entries, err := h.service.ListHistory(c.UserContext(), user, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:          e.ID,
			ChangeType:  e.ChangeType,
			ChangedByID: e.ChangedByID,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return ok(c, "", resp)
}

// AssignTicket POST /tickets/:id/assign. Replies without data.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	if _, err := h.service.AssignTicket(c.UserContext(), user, c.Params("id"), req.TechnicianID); err != nil {
		return err
	}
	return ok(c, "Ticket assigned", nil)
}

// AcceptTicket POST /tickets/:id/accept.
func (h *TicketsHandler) AcceptTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AcceptTicketRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	lines := make([]inventory.Line, 0, len(req.Manifest.Items))
	for _, item := range req.Manifest.Items {
		lines = append(lines, inventory.Line{ItemID: item.InventoryID, Quantity: item.Quantity})
	}
	ticket, err := h.service.AcceptTicket(c.UserContext(), user, c.Params("id"), lines, req.Manifest.Note)
	if err != nil {
		return err
	}
	return ok(c, "Ticket accepted", dto.TicketFromDomain(ticket))
}

// StartTicket POST /tickets/:id/start.
func (h *TicketsHandler) StartTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.StartTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "Work started", dto.TicketFromDomain(ticket))
}

// CompleteTicket POST /tickets/:id/complete.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.CompleteTicket(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "Ticket completed", dto.TicketFromDomain(ticket))
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{PageRequest: pageRequest(c)}
	for _, s := range splitCSV(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	if display := c.Query("display_status"); display != "" {
		filter.DisplayStatus = domain.DisplayStatus(display)
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	return filter
}

func ticketPage(page *service.TicketPage) dto.Page[dto.TicketResponse] {
	out := dto.Page[dto.TicketResponse]{
		Data:        make([]dto.TicketResponse, 0, len(page.Tickets)),
		CurrentPage: page.Pagination.Page,
		PerPage:     page.Pagination.PerPage,
		Total:       page.Pagination.Total,
		LastPage:    page.Pagination.LastPage,
	}
	for i := range page.Tickets {
		out.Data = append(out.Data, dto.TicketFromDomain(&page.Tickets[i]))
	}
	return out
}
