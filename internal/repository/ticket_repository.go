package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
)

var (
	// ErrStaleWrite is returned when the row no longer has the status the caller read.
	ErrStaleWrite = errors.New("ticket changed since it was read")
	// ErrInsufficientStock is returned when a guarded decrement would go below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	CustomerID *string
	AssignedTo *string
	Statuses   []domain.TicketStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	// SaveTransition persists a lifecycle change only if the stored status is still from.
	SaveTransition(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus) error
	// SaveAcceptance persists the accept transition and decrements stock for the
	// manifest in one transaction.
	SaveAcceptance(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus, manifest inventory.Manifest) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, customer_id, title, description, status, priority, assigned_to,
               accepted_at, completed_at, photos, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (customer_id, title, description, status, priority, photos)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	photos := ticket.Photos
	if photos == nil {
		photos = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		ticket.CustomerID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		photos,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) SaveTransition(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus) error {
	return updateTicketStatus(ctx, r.pool, ticket, from)
}

func (r *ticketRepository) SaveAcceptance(ctx context.Context, ticket *domain.Ticket, from domain.TicketStatus, manifest inventory.Manifest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updateTicketStatus(ctx, tx, ticket, from); err != nil {
		return err
	}

	for _, line := range manifest.Lines() {
		cmd, err := tx.Exec(ctx, `
            UPDATE inventory_items SET available_quantity = available_quantity - $1, updated_at = NOW()
            WHERE id = $2 AND available_quantity >= $1`, line.Quantity, line.ItemID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("%w: inventory item %s", ErrInsufficientStock, line.ItemID)
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO ticket_inventory_usage (ticket_id, inventory_id, quantity, note)
            VALUES ($1, $2, $3, $4)`, ticket.ID, line.ItemID, line.Quantity, manifest.Note()); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateTicketStatus(ctx context.Context, db execQuerier, ticket *domain.Ticket, from domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET status=$1, assigned_to=$2, accepted_at=$3, completed_at=$4, updated_at=NOW()
        WHERE id=$5 AND status=$6
        RETURNING updated_at`
	var updatedAt time.Time
	err := db.QueryRow(ctx, query,
		ticket.Status,
		ticket.AssignedTo,
		ticket.AcceptedAt,
		ticket.CompletedAt,
		ticket.ID,
		from,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleWrite
	}
	if err != nil {
		return err
	}
	ticket.UpdatedAt = updatedAt
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := ticketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := ticketWhere(filter)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total)
	return total, err
}

func ticketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTo,
		&ticket.AcceptedAt,
		&ticket.CompletedAt,
		&ticket.Photos,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
