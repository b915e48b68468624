package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// OccurrenceStatus enumerates maintenance visit states.
type OccurrenceStatus string

const (
	OccurrencePending   OccurrenceStatus = "pending"
	OccurrenceAssigned  OccurrenceStatus = "assigned"
	OccurrenceCompleted OccurrenceStatus = "completed"
	OccurrenceMissed    OccurrenceStatus = "missed"
)

// Valid reports whether s is a known occurrence status.
func (s OccurrenceStatus) Valid() bool {
	switch s {
	case OccurrencePending, OccurrenceAssigned, OccurrenceCompleted, OccurrenceMissed:
		return true
	}
	return false
}

// AMCContract is an annual maintenance contract and its scheduled visits.
type AMCContract struct {
	ID             string
	BranchID       string
	CustomerID     string
	ContractType   string
	PurchaseDate   time.Time
	WarrantyEndsAt *time.Time
	Amount         *decimal.Decimal
	Notes          string
	Active         bool
	Occurrences    []MaintenanceOccurrence
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MaintenanceOccurrence is one scheduled visit owned by a contract.
type MaintenanceOccurrence struct {
	ID            string
	ContractID    string
	ScheduledDate time.Time
	Note          string
	Status        OccurrenceStatus
	TechnicianID  *string
	Technician    *TechnicianRef
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Occurrence returns the occurrence with id.
func (c *AMCContract) Occurrence(id string) (*MaintenanceOccurrence, bool) {
	for i := range c.Occurrences {
		if c.Occurrences[i].ID == id {
			return &c.Occurrences[i], true
		}
	}
	return nil, false
}

// Validate checks the fields required before a contract is stored.
func (c *AMCContract) Validate() error {
	details := map[string]any{}
	if c.CustomerID == "" {
		details["customer_id"] = "required"
	}
	if c.ContractType == "" {
		details["contract_type"] = "required"
	}
	if c.PurchaseDate.IsZero() {
		details["purchase_date"] = "required"
	}
	if c.WarrantyEndsAt != nil && c.WarrantyEndsAt.Before(c.PurchaseDate) {
		details["warranty_end_date"] = "must not precede purchase_date"
	}
	if c.Amount != nil && c.Amount.IsNegative() {
		details["amount"] = "must not be negative"
	}
	if len(c.Occurrences) == 0 {
		details["maintenances"] = "at least one maintenance is required"
	}
	for i, occ := range c.Occurrences {
		if occ.ScheduledDate.IsZero() {
			details[fmt.Sprintf("maintenances[%d].scheduled_date", i)] = "required"
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid contract", details)
	}
	return nil
}

// AssignTechnician binds a pending occurrence to a technician.
func (o *MaintenanceOccurrence) AssignTechnician(tech TechnicianRef) error {
	if tech.ID == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	if o.Status != OccurrencePending {
		return apperrors.NewInvalidTransition(
			fmt.Sprintf("maintenance cannot be assigned while %s", o.Status),
			map[string]any{"maintenance_id": o.ID, "from": o.Status, "to": OccurrenceAssigned},
		)
	}
	o.Status = OccurrenceAssigned
	o.TechnicianID = &tech.ID
	o.Technician = &tech
	return nil
}

// CheckInvariants verifies the assignee rule at occurrence granularity.
func (o *MaintenanceOccurrence) CheckInvariants() error {
	switch o.Status {
	case OccurrenceAssigned:
		if o.TechnicianID == nil {
			return fmt.Errorf("assigned maintenance %s has no technician", o.ID)
		}
	case OccurrencePending:
		if o.TechnicianID != nil {
			return fmt.Errorf("pending maintenance %s carries a technician", o.ID)
		}
	}
	return nil
}
