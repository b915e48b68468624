package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// CreateUserRequest payload.
type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=120"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     domain.UserRole `json:"role" validate:"required,oneof=admin technician customer"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   domain.UserRole `json:"role"`
	Active bool            `json:"active"`
}

// UserFromDomain maps a user to its wire form.
func UserFromDomain(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Active: u.Active}
}

// ToDomain converts a wire user back to the domain type.
func (r UserResponse) ToDomain() domain.User {
	return domain.User{ID: r.ID, Name: r.Name, Email: r.Email, Role: r.Role, Active: r.Active}
}
