package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// InventoryRepository persists stock items and their consumption.
type InventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	GetByID(ctx context.Context, id string) (*domain.InventoryItem, error)
	List(ctx context.Context) ([]domain.InventoryItem, error)
	// AdjustQuantity adds delta to the available quantity, refusing to go below zero.
	AdjustQuantity(ctx context.Context, id string, delta int) (*domain.InventoryItem, error)
	ListUsageByTicket(ctx context.Context, ticketID string) ([]domain.InventoryUsage, error)
}

type inventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository instantiates the repository.
func NewInventoryRepository(pool *pgxpool.Pool) InventoryRepository {
	return &inventoryRepository{pool: pool}
}

const inventoryColumns = `id, product_name, category, brand, model, serial_number, available_quantity, unit_price, created_at, updated_at`

func (r *inventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	const query = `
        INSERT INTO inventory_items (product_name, category, brand, model, serial_number, available_quantity, unit_price)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		item.ProductName,
		item.Category,
		item.Brand,
		item.Model,
		item.SerialNumber,
		item.AvailableQuantity,
		item.UnitPrice,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *inventoryRepository) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return scanInventoryItem(r.pool.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id=$1`, id))
}

func (r *inventoryRepository) List(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inventoryColumns+` FROM inventory_items ORDER BY product_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}

func (r *inventoryRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*domain.InventoryItem, error) {
	query := `
        UPDATE inventory_items SET available_quantity = available_quantity + $1, updated_at = NOW()
        WHERE id = $2 AND available_quantity + $1 >= 0
        RETURNING ` + inventoryColumns
	item, err := scanInventoryItem(r.pool.QueryRow(ctx, query, delta, id))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInsufficientStock
	}
	return item, err
}

func (r *inventoryRepository) ListUsageByTicket(ctx context.Context, ticketID string) ([]domain.InventoryUsage, error) {
	const query = `
        SELECT id, ticket_id, inventory_id, quantity, note, created_at
        FROM ticket_inventory_usage WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InventoryUsage
	for rows.Next() {
		var usage domain.InventoryUsage
		if err := rows.Scan(
			&usage.ID,
			&usage.TicketID,
			&usage.InventoryID,
			&usage.Quantity,
			&usage.Note,
			&usage.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, usage)
	}
	return result, rows.Err()
}

func scanInventoryItem(row pgx.Row) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := row.Scan(
		&item.ID,
		&item.ProductName,
		&item.Category,
		&item.Brand,
		&item.Model,
		&item.SerialNumber,
		&item.AvailableQuantity,
		&item.UnitPrice,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
