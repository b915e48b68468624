package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// DateLayout is the calendar-date form used by contract fields.
const DateLayout = "2006-01-02"

// MaintenanceRequest is one scheduled visit inside a contract.
type MaintenanceRequest struct {
	ScheduledDate string `json:"scheduled_date"`
	Note          string `json:"note"`
	Status        string `json:"status,omitempty"`
}

// CreateContractRequest payload of POST /amc.
type CreateContractRequest struct {
	BranchID        string               `json:"branch_id"`
	CustomerID      string               `json:"customer_id" validate:"required"`
	ContractType    string               `json:"contract_type" validate:"required"`
	PurchaseDate    string               `json:"purchase_date" validate:"required"`
	WarrantyEndDate *string              `json:"warranty_end_date"`
	Amount          *decimal.Decimal     `json:"amount"`
	Notes           string               `json:"notes"`
	Maintenances    []MaintenanceRequest `json:"maintenances"`
}

// AssignMaintenanceRequest payload.
type AssignMaintenanceRequest struct {
	TechnicianID string `json:"technician_id" validate:"required"`
}

// TechnicianResponse is the reference embedded in an assigned visit.
type TechnicianResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// MaintenanceResponse is the wire form of a visit.
type MaintenanceResponse struct {
	ID            string                  `json:"id"`
	ContractID    string                  `json:"contract_id"`
	ScheduledDate string                  `json:"scheduled_date"`
	Note          string                  `json:"note"`
	Status        domain.OccurrenceStatus `json:"status"`
	TechnicianID  *string                 `json:"technician_id"`
	Technician    *TechnicianResponse     `json:"technician,omitempty"`
}

// ContractResponse is the wire form of a contract.
type ContractResponse struct {
	ID              string                `json:"id"`
	BranchID        string                `json:"branch_id"`
	CustomerID      string                `json:"customer_id"`
	ContractType    string                `json:"contract_type"`
	PurchaseDate    string                `json:"purchase_date"`
	WarrantyEndDate *string               `json:"warranty_end_date"`
	Amount          *decimal.Decimal      `json:"amount"`
	Notes           string                `json:"notes"`
	Active          bool                  `json:"active"`
	Maintenances    []MaintenanceResponse `json:"maintenances"`
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// ToDomain converts the request, reporting unparseable dates by field path.
func (r CreateContractRequest) ToDomain() (*domain.AMCContract, error) {
	details := map[string]any{}
	contract := &domain.AMCContract{
		BranchID:     strings.TrimSpace(r.BranchID),
		CustomerID:   strings.TrimSpace(r.CustomerID),
		ContractType: strings.TrimSpace(r.ContractType),
		Amount:       r.Amount,
		Notes:        r.Notes,
	}
	if t, err := ParseDate(r.PurchaseDate); err == nil {
		contract.PurchaseDate = t
	} else {
		details["purchase_date"] = "must be a date (YYYY-MM-DD)"
	}
	if r.WarrantyEndDate != nil && strings.TrimSpace(*r.WarrantyEndDate) != "" {
		if t, err := ParseDate(*r.WarrantyEndDate); err == nil {
			contract.WarrantyEndsAt = &t
		} else {
			details["warranty_end_date"] = "must be a date (YYYY-MM-DD)"
		}
	}
	for i, m := range r.Maintenances {
		occ := domain.MaintenanceOccurrence{Note: m.Note, Status: domain.OccurrencePending}
		if strings.TrimSpace(m.ScheduledDate) != "" {
			t, err := ParseDate(m.ScheduledDate)
			if err != nil {
				details[fmt.Sprintf("maintenances[%d].scheduled_date", i)] = "must be a date (YYYY-MM-DD)"
			}
			occ.ScheduledDate = t
		}
		contract.Occurrences = append(contract.Occurrences, occ)
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid contract", details)
	}
	return contract, nil
}

// MaintenanceFromDomain maps a visit to its wire form.
func MaintenanceFromDomain(o *domain.MaintenanceOccurrence) MaintenanceResponse {
	resp := MaintenanceResponse{
		ID:            o.ID,
		ContractID:    o.ContractID,
		ScheduledDate: o.ScheduledDate.Format(DateLayout),
		Note:          o.Note,
		Status:        o.Status,
		TechnicianID:  o.TechnicianID,
	}
	if o.Technician != nil {
		resp.Technician = &TechnicianResponse{ID: o.Technician.ID, Name: o.Technician.Name, Email: o.Technician.Email}
	}
	return resp
}

// ContractFromDomain maps a contract to its wire form.
func ContractFromDomain(c *domain.AMCContract) ContractResponse {
	resp := ContractResponse{
		ID:           c.ID,
		BranchID:     c.BranchID,
		CustomerID:   c.CustomerID,
		ContractType: c.ContractType,
		PurchaseDate: c.PurchaseDate.Format(DateLayout),
		Amount:       c.Amount,
		Notes:        c.Notes,
		Active:       c.Active,
		Maintenances: make([]MaintenanceResponse, 0, len(c.Occurrences)),
	}
	if c.WarrantyEndsAt != nil {
		end := c.WarrantyEndsAt.Format(DateLayout)
		resp.WarrantyEndDate = &end
	}
	for i := range c.Occurrences {
		resp.Maintenances = append(resp.Maintenances, MaintenanceFromDomain(&c.Occurrences[i]))
	}
	return resp
}

// ToDomain converts a wire visit back to the domain type.
func (r MaintenanceResponse) ToDomain() (domain.MaintenanceOccurrence, error) {
	occ := domain.MaintenanceOccurrence{
		ID:           r.ID,
		ContractID:   r.ContractID,
		Note:         r.Note,
		Status:       r.Status,
		TechnicianID: r.TechnicianID,
	}
	if r.ScheduledDate != "" {
		t, err := ParseDate(r.ScheduledDate)
		if err != nil {
			return occ, err
		}
		occ.ScheduledDate = t
	}
	if r.Technician != nil {
		occ.Technician = &domain.TechnicianRef{ID: r.Technician.ID, Name: r.Technician.Name, Email: r.Technician.Email}
	}
	return occ, nil
}

// ToDomain converts a wire contract back to the domain type.
func (r ContractResponse) ToDomain() (*domain.AMCContract, error) {
	contract := &domain.AMCContract{
		ID:           r.ID,
		BranchID:     r.BranchID,
		CustomerID:   r.CustomerID,
		ContractType: r.ContractType,
		Amount:       r.Amount,
		Notes:        r.Notes,
		Active:       r.Active,
	}
	if r.PurchaseDate != "" {
		t, err := ParseDate(r.PurchaseDate)
		if err != nil {
			return nil, err
		}
		contract.PurchaseDate = t
	}
	if r.WarrantyEndDate != nil && *r.WarrantyEndDate != "" {
		t, err := ParseDate(*r.WarrantyEndDate)
		if err != nil {
			return nil, err
		}
		contract.WarrantyEndsAt = &t
	}
	for _, m := range r.Maintenances {
		occ, err := m.ToDomain()
		if err != nil {
			return nil, err
		}
		contract.Occurrences = append(contract.Occurrences, occ)
	}
	return contract, nil
}
