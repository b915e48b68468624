package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
)

// UserService is what the user endpoints need from the service layer.
type UserService interface {
	ListUsers(ctx context.Context, filter service.UserListFilter) (*service.UserPage, error)
	CreateUser(ctx context.Context, input service.UserCreateInput) (*domain.User, error)
}

// Authenticator logs users in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error)
}

// UsersHandler exposes login and the user directory.
type UsersHandler struct {
	users     UserService
	auth      Authenticator
	validator *dto.Validator
}

// NewUsersHandler creates the handler.
func NewUsersHandler(users UserService, authenticator Authenticator, validator *dto.Validator) *UsersHandler {
	return &UsersHandler{users: users, auth: authenticator, validator: validator}
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, "Logged in", dto.LoginResponse{Token: token, ExpiresAt: exp, User: dto.UserFromDomain(user)})
}

// ListUsers GET /users?role=&active=. The page is nested under "users".
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	filter := service.UserListFilter{
		Active:      parseBool(c.Query("active")),
		PageRequest: pageRequest(c),
	}
	if role := c.Query("role"); role != "" {
		r := domain.UserRole(role)
		filter.Role = &r
	}
	page, err := h.users.ListUsers(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := dto.Page[dto.UserResponse]{
		Data:        make([]dto.UserResponse, 0, len(page.Users)),
		CurrentPage: page.Pagination.Page,
		PerPage:     page.Pagination.PerPage,
		Total:       page.Pagination.Total,
		LastPage:    page.Pagination.LastPage,
	}
	for i := range page.Users {
		out.Data = append(out.Data, dto.UserFromDomain(&page.Users[i]))
	}
	return c.JSON(fiber.Map{"success": true, "users": out})
}

// CreateUser POST /users.
func (h *UsersHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := parseJSON(c, h.validator, &req); err != nil {
		return err
	}
	user, err := h.users.CreateUser(c.UserContext(), service.UserCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return created(c, "User created", dto.UserFromDomain(user))
}
