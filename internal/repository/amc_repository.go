package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// AMCRepository persists maintenance contracts and their visits.
type AMCRepository interface {
	// Create stores the contract and all of its occurrences atomically.
	Create(ctx context.Context, contract *domain.AMCContract) error
	GetByID(ctx context.Context, id string) (*domain.AMCContract, error)
	GetOccurrence(ctx context.Context, id string) (*domain.MaintenanceOccurrence, error)
	// SaveOccurrenceAssignment persists an assignment only while the visit is still pending.
	SaveOccurrenceAssignment(ctx context.Context, occ *domain.MaintenanceOccurrence) error
}

type amcRepository struct {
	pool *pgxpool.Pool
}

// NewAMCRepository instantiates the repository.
func NewAMCRepository(pool *pgxpool.Pool) AMCRepository {
	return &amcRepository{pool: pool}
}

func (r *amcRepository) Create(ctx context.Context, contract *domain.AMCContract) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertContract = `
        INSERT INTO amc_contracts (branch_id, customer_id, contract_type, purchase_date, warranty_end_date, amount, notes, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertContract,
		contract.BranchID,
		contract.CustomerID,
		contract.ContractType,
		contract.PurchaseDate,
		contract.WarrantyEndsAt,
		contract.Amount,
		contract.Notes,
		contract.Active,
	).Scan(&contract.ID, &contract.CreatedAt, &contract.UpdatedAt); err != nil {
		return err
	}

	const insertOccurrence = `
        INSERT INTO amc_maintenances (contract_id, scheduled_date, note, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	for i := range contract.Occurrences {
		occ := &contract.Occurrences[i]
		occ.ContractID = contract.ID
		if err := tx.QueryRow(ctx, insertOccurrence,
			contract.ID,
			occ.ScheduledDate,
			occ.Note,
			occ.Status,
		).Scan(&occ.ID, &occ.CreatedAt, &occ.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *amcRepository) GetByID(ctx context.Context, id string) (*domain.AMCContract, error) {
	const query = `
        SELECT id, branch_id, customer_id, contract_type, purchase_date, warranty_end_date, amount, notes, active_flag, created_at, updated_at
        FROM amc_contracts WHERE id=$1`
	var contract domain.AMCContract
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&contract.ID,
		&contract.BranchID,
		&contract.CustomerID,
		&contract.ContractType,
		&contract.PurchaseDate,
		&contract.WarrantyEndsAt,
		&contract.Amount,
		&contract.Notes,
		&contract.Active,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, occurrenceSelect+` WHERE m.contract_id=$1 ORDER BY m.scheduled_date ASC, m.created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		contract.Occurrences = append(contract.Occurrences, *occ)
	}
	return &contract, rows.Err()
}

func (r *amcRepository) GetOccurrence(ctx context.Context, id string) (*domain.MaintenanceOccurrence, error) {
	return scanOccurrence(r.pool.QueryRow(ctx, occurrenceSelect+` WHERE m.id=$1`, id))
}

func (r *amcRepository) SaveOccurrenceAssignment(ctx context.Context, occ *domain.MaintenanceOccurrence) error {
	const query = `
        UPDATE amc_maintenances SET status=$1, technician_id=$2, updated_at=NOW()
        WHERE id=$3 AND status='pending'
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, occ.Status, occ.TechnicianID, occ.ID).Scan(&occ.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleWrite
	}
	return err
}

const occurrenceSelect = `
        SELECT m.id, m.contract_id, m.scheduled_date, m.note, m.status, m.technician_id,
               u.name, u.email, m.created_at, m.updated_at
        FROM amc_maintenances m LEFT JOIN users u ON u.id = m.technician_id`

func scanOccurrence(row pgx.Row) (*domain.MaintenanceOccurrence, error) {
	var (
		occ       domain.MaintenanceOccurrence
		techName  *string
		techEmail *string
	)
	if err := row.Scan(
		&occ.ID,
		&occ.ContractID,
		&occ.ScheduledDate,
		&occ.Note,
		&occ.Status,
		&occ.TechnicianID,
		&techName,
		&techEmail,
		&occ.CreatedAt,
		&occ.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if occ.TechnicianID != nil {
		ref := domain.TechnicianRef{ID: *occ.TechnicianID}
		if techName != nil {
			ref.Name = *techName
		}
		if techEmail != nil {
			ref.Email = *techEmail
		}
		occ.Technician = &ref
	}
	return &occ, nil
}
