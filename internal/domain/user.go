package domain

import "time"

// UserRole enumerates capabilities carried by an account.
type UserRole string

const (
	UserRoleCustomer   UserRole = "customer"
	UserRoleAdmin      UserRole = "admin"
	UserRoleTechnician UserRole = "technician"
)

// User is an account: customer, administrator or technician.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanTakeAssignments reports whether the user may be bound to tickets or visits.
func (u *User) CanTakeAssignments() bool {
	return u != nil && u.Active && u.Role == UserRoleTechnician
}

// TechnicianRef is the denormalized technician shown next to assignments.
type TechnicianRef struct {
	ID    string
	Name  string
	Email string
}

// Ref returns the display reference for u.
func (u *User) Ref() TechnicianRef {
	return TechnicianRef{ID: u.ID, Name: u.Name, Email: u.Email}
}
