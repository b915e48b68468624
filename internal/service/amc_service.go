package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// AMCService manages maintenance contracts and their scheduled visits.
type AMCService struct {
	contracts repository.AMCRepository
	users     repository.UserRepository
	events    publisher
}

// NewAMCService constructs the service.
func NewAMCService(contracts repository.AMCRepository, users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *AMCService {
	return &AMCService{
		contracts: contracts,
		users:     users,
		events:    publisher{dispatcher: dispatcher, logger: logger},
	}
}

// CreateContract validates and stores a contract with all its occurrences.
func (s *AMCService) CreateContract(ctx context.Context, actor *domain.User, contract *domain.AMCContract) (*domain.AMCContract, error) {
	contract.CustomerID = strings.TrimSpace(contract.CustomerID)
	contract.ContractType = strings.TrimSpace(contract.ContractType)
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	contract.Active = true
	for i := range contract.Occurrences {
		contract.Occurrences[i].Status = domain.OccurrencePending
		contract.Occurrences[i].TechnicianID = nil
		contract.Occurrences[i].Technician = nil
	}
	if err := s.contracts.Create(ctx, contract); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.events.publish(ctx, events.Event{
		Type:        events.EventContractCreated,
		AggregateID: contract.ID,
		Actor:       actorOf(actor),
		Payload: events.ContractCreatedPayload{
			CustomerID:   contract.CustomerID,
			ContractType: contract.ContractType,
			Occurrences:  len(contract.Occurrences),
		},
	})
	return contract, nil
}

// GetContract loads a contract and its occurrences.
func (s *AMCService) GetContract(ctx context.Context, id string) (*domain.AMCContract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "contract", id)
	}
	return contract, nil
}

// AssignTechnician binds a pending occurrence to an active technician.
func (s *AMCService) AssignTechnician(ctx context.Context, actor *domain.User, occurrenceID, technicianID string) (*domain.MaintenanceOccurrence, error) {
	if strings.TrimSpace(technicianID) == "" {
		return nil, apperrors.NewValidationError("technician_id required", map[string]any{"technician_id": "required"})
	}
	tech, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		return nil, notFoundOr(err, "technician", technicianID)
	}
	if !tech.CanTakeAssignments() {
		return nil, apperrors.NewValidationError("user cannot take assignments",
			map[string]any{"technician_id": "must be an active technician"})
	}

	occ, err := s.contracts.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, notFoundOr(err, "maintenance", occurrenceID)
	}
	if err := occ.AssignTechnician(tech.Ref()); err != nil {
		return nil, err
	}
	if err := s.contracts.SaveOccurrenceAssignment(ctx, occ); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, apperrors.NewInvalidTransition("maintenance is no longer pending",
				map[string]any{"maintenance_id": occurrenceID})
		}
		return nil, apperrors.MapError(err)
	}
	s.events.publish(ctx, events.Event{
		Type:        events.EventMaintenanceAssigned,
		AggregateID: occ.ID,
		Actor:       actorOf(actor),
		Payload:     events.MaintenanceAssignedPayload{ContractID: occ.ContractID, TechnicianID: tech.ID},
	})
	return occ, nil
}
