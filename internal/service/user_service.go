package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// UserService exposes the user directory.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// UserListFilter narrows the directory listing.
type UserListFilter struct {
	Role   *domain.UserRole
	Active *bool
	PageRequest
}

// UserPage is one page of users.
type UserPage struct {
	Users      []domain.User
	Pagination Pagination
}

// UserCreateInput describes a new account.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.UserRole
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// ListUsers returns a page of users matching filter.
func (s *UserService) ListUsers(ctx context.Context, filter UserListFilter) (*UserPage, error) {
	page := filter.PageRequest.normalize()
	repoFilter := repository.UserFilter{
		Role:   filter.Role,
		Active: filter.Active,
		Limit:  page.PerPage,
		Offset: page.offset(),
	}
	users, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.users.Count(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return &UserPage{Users: users, Pagination: newPagination(page, total)}, nil
}

// CreateUser registers an account with a hashed password.
func (s *UserService) CreateUser(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	details := map[string]any{}
	if email == "" {
		details["email"] = "required"
	}
	if len(input.Password) < auth.MinPasswordLength {
		details["password"] = fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength)
	}
	switch input.Role {
	case domain.UserRoleAdmin, domain.UserRoleTechnician, domain.UserRoleCustomer:
	default:
		details["role"] = "must be admin, technician or customer"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
