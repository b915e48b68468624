package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a stock line consumed while resolving tickets.
type InventoryItem struct {
	ID                string
	ProductName       string
	Category          string
	Brand             string
	Model             string
	SerialNumber      string
	AvailableQuantity int
	UnitPrice         decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Catalog is a read snapshot of inventory keyed by item id.
type Catalog struct {
	items map[string]InventoryItem
	order []string
}

// NewCatalog indexes items; later duplicates replace earlier ones.
func NewCatalog(items []InventoryItem) Catalog {
	c := Catalog{items: make(map[string]InventoryItem, len(items))}
	for _, item := range items {
		if _, seen := c.items[item.ID]; !seen {
			c.order = append(c.order, item.ID)
		}
		c.items[item.ID] = item
	}
	return c
}

// Empty reports whether no inventory exists at all.
func (c Catalog) Empty() bool {
	return len(c.items) == 0
}

// Len returns the number of catalogued items.
func (c Catalog) Len() int {
	return len(c.items)
}

// Get returns the item with id.
func (c Catalog) Get(id string) (InventoryItem, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns the snapshot in insertion order.
func (c Catalog) Items() []InventoryItem {
	out := make([]InventoryItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// InventoryUsage records stock consumed by an accepted ticket.
type InventoryUsage struct {
	ID          string
	TicketID    string
	InventoryID string
	Quantity    int
	Note        string
	CreatedAt   time.Time
}
