package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// InventoryService administers the stock catalog.
type InventoryService struct {
	items   repository.InventoryRepository
	catalog CatalogStore
	events  publisher
}

// InventoryItemInput describes a new catalog item.
type InventoryItemInput struct {
	ProductName       string
	Category          string
	Brand             string
	Model             string
	SerialNumber      string
	AvailableQuantity int
	UnitPrice         decimal.Decimal
}

// NewInventoryService constructs the service.
func NewInventoryService(items repository.InventoryRepository, catalog CatalogStore, dispatcher events.Dispatcher, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		items:   items,
		catalog: catalog,
		events:  publisher{dispatcher: dispatcher, logger: logger},
	}
}

// ListCatalog returns every item, served from cache when possible.
func (s *InventoryService) ListCatalog(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []domain.InventoryItem{}
	}
	return items, nil
}

// CreateItem adds a catalog item.
func (s *InventoryService) CreateItem(ctx context.Context, input InventoryItemInput) (*domain.InventoryItem, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.ProductName) == "" {
		details["product_name"] = "required"
	}
	if input.AvailableQuantity < 0 {
		details["available_quantity"] = "must not be negative"
	}
	if input.UnitPrice.IsNegative() {
		details["unit_price"] = "must not be negative"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid inventory item", details)
	}

	item := &domain.InventoryItem{
		ProductName:       strings.TrimSpace(input.ProductName),
		Category:          strings.TrimSpace(input.Category),
		Brand:             strings.TrimSpace(input.Brand),
		Model:             strings.TrimSpace(input.Model),
		SerialNumber:      strings.TrimSpace(input.SerialNumber),
		AvailableQuantity: input.AvailableQuantity,
		UnitPrice:         input.UnitPrice,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.catalog.Invalidate(ctx)
	return item, nil
}

// AdjustQuantity adds delta to an item's stock; stock never drops below zero.
func (s *InventoryService) AdjustQuantity(ctx context.Context, actor *domain.User, itemID string, delta int) (*domain.InventoryItem, error) {
	if delta == 0 {
		return nil, apperrors.NewValidationError("delta must not be zero", map[string]any{"delta": "must not be zero"})
	}
	item, err := s.items.AdjustQuantity(ctx, itemID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperrors.NewValidationError("adjustment would make stock negative",
				map[string]any{"delta": "exceeds available quantity"})
		}
		return nil, notFoundOr(err, "inventory item", itemID)
	}
	s.catalog.Invalidate(ctx)
	s.events.publish(ctx, events.Event{
		Type:        events.EventInventoryAdjusted,
		AggregateID: item.ID,
		Actor:       actorOf(actor),
		Payload:     events.InventoryAdjustedPayload{Delta: delta, AvailableQuantity: item.AvailableQuantity},
	})
	return item, nil
}

// ListUsage returns stock consumed by a ticket.
func (s *InventoryService) ListUsage(ctx context.Context, ticketID string) ([]domain.InventoryUsage, error) {
	usage, err := s.items.ListUsageByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if usage == nil {
		usage = []domain.InventoryUsage{}
	}
	return usage, nil
}
