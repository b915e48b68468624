package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// AMCService is what the contract endpoints need from the service layer.
type AMCService interface {
	CreateContract(ctx context.Context, actor *domain.User, contract *domain.AMCContract) (*domain.AMCContract, error)
	GetContract(ctx context.Context, id string) (*domain.AMCContract, error)
	AssignTechnician(ctx context.Context, actor *domain.User, occurrenceID, technicianID string) (*domain.MaintenanceOccurrence, error)
}

// AMCHandler serves maintenance contracts.
type AMCHandler struct {
	service   AMCService
	validator *dto.Validator
}

// NewAMCHandler creates the handler.
func NewAMCHandler(amcService AMCService, validator *dto.Validator) *AMCHandler {
	return &AMCHandler{service: amcService, validator: validator}
}

// CreateContract POST /amc.
func (h *AMCHandler) CreateContract(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateContractRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	contract, err := req.ToDomain()
	if err != nil {
		return err
	}
	contract, err = h.service.CreateContract(c.UserContext(), user, contract)
	if err != nil {
		return err
	}
	return created(c, "Contract created", dto.ContractFromDomain(contract))
}

// GetContract GET /amc/:id.
func (h *AMCHandler) GetContract(c *fiber.Ctx) error {
	contract, err := h.service.GetContract(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "", dto.ContractFromDomain(contract))
}

// AssignTechnician POST /amc/maintenances/:id/assign. Replies {status, message}.
func (h *AMCHandler) AssignTechnician(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignMaintenanceRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	if _, err := h.service.AssignTechnician(c.UserContext(), user, c.Params("id"), req.TechnicianID); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Status: "success", Message: "Technician assigned"})
}
