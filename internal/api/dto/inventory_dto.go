package dto

import (
	"github.com/shopspring/decimal"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// InventoryItemResponse is the wire form of a catalog item.
type InventoryItemResponse struct {
	ID                string          `json:"id"`
	ProductName       string          `json:"product_name"`
	Category          string          `json:"category"`
	Brand             string          `json:"brand"`
	Model             string          `json:"model"`
	SerialNumber      string          `json:"serial_number"`
	AvailableQuantity int             `json:"available_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

// CreateInventoryItemRequest payload.
type CreateInventoryItemRequest struct {
	ProductName       string          `json:"product_name" validate:"required,max=200"`
	Category          string          `json:"category"`
	Brand             string          `json:"brand"`
	Model             string          `json:"model"`
	SerialNumber      string          `json:"serial_number"`
	AvailableQuantity int             `json:"available_quantity" validate:"gte=0"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

// AdjustQuantityRequest payload; delta may be negative.
type AdjustQuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// InventoryItemFromDomain maps an item to its wire form.
func InventoryItemFromDomain(item *domain.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		ID:                item.ID,
		ProductName:       item.ProductName,
		Category:          item.Category,
		Brand:             item.Brand,
		Model:             item.Model,
		SerialNumber:      item.SerialNumber,
		AvailableQuantity: item.AvailableQuantity,
		UnitPrice:         item.UnitPrice,
	}
}

// ToDomain converts a wire item back to the domain type.
func (r InventoryItemResponse) ToDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:                r.ID,
		ProductName:       r.ProductName,
		Category:          r.Category,
		Brand:             r.Brand,
		Model:             r.Model,
		SerialNumber:      r.SerialNumber,
		AvailableQuantity: r.AvailableQuantity,
		UnitPrice:         r.UnitPrice,
	}
}
