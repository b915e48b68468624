package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
)

// InventoryService is what the inventory endpoints need from the service layer.
type InventoryService interface {
	ListCatalog(ctx context.Context) ([]domain.InventoryItem, error)
	CreateItem(ctx context.Context, input service.InventoryItemInput) (*domain.InventoryItem, error)
	AdjustQuantity(ctx context.Context, actor *domain.User, itemID string, delta int) (*domain.InventoryItem, error)
	ListUsage(ctx context.Context, ticketID string) ([]domain.InventoryUsage, error)
}

// InventoryHandler serves the stock catalog.
type InventoryHandler struct {
	service   InventoryService
	validator *dto.Validator
}

// NewInventoryHandler creates the handler.
func NewInventoryHandler(inventoryService InventoryService, validator *dto.Validator) *InventoryHandler {
	return &InventoryHandler{service: inventoryService, validator: validator}
}

// ListCatalog GET /inventory. Returns a flat list.
func (h *InventoryHandler) ListCatalog(c *fiber.Ctx) error {
	items, err := h.service.ListCatalog(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.InventoryItemResponse, 0, len(items))
	for i := range items {
		resp = append(resp, dto.InventoryItemFromDomain(&items[i]))
	}
	return c.JSON(resp)
}

// CreateItem POST /inventory.
func (h *InventoryHandler) CreateItem(c *fiber.Ctx) error {
	var req dto.CreateInventoryItemRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	item, err := h.service.CreateItem(c.UserContext(), service.InventoryItemInput{
		ProductName:       req.ProductName,
		Category:          req.Category,
		Brand:             req.Brand,
		Model:             req.Model,
		SerialNumber:      req.SerialNumber,
		AvailableQuantity: req.AvailableQuantity,
		UnitPrice:         req.UnitPrice,
	})
	if err != nil {
		return err
	}
	return created(c, "Inventory item created", dto.InventoryItemFromDomain(item))
}

// AdjustQuantity PATCH /inventory/:id/quantity.
func (h *InventoryHandler) AdjustQuantity(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AdjustQuantityRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	item, err := h.service.AdjustQuantity(c.UserContext(), user, c.Params("id"), req.Delta)
	if err != nil {
		return err
	}
	return ok(c, "Quantity updated", dto.InventoryItemFromDomain(item))
}

// ListUsage GET /tickets/:id/inventory.
func (h *InventoryHandler) ListUsage(c *fiber.Ctx) error {
	usage, err := h.service.ListUsage(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]dto.InventoryUsageResponse, 0, len(usage))
	for _, u := range usage {
		resp = append(resp, dto.InventoryUsageResponse{
			ID:          u.ID,
			InventoryID: u.InventoryID,
			Quantity:    u.Quantity,
			Note:        u.Note,
			CreatedAt:   u.CreatedAt,
		})
	}
	return ok(c, "", resp)
}
