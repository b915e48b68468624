package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func TestListUsersPaginates(t *testing.T) {
	users := &mockUserRepo{}
	role := domain.UserRoleTechnician
	active := true
	expected := repository.UserFilter{Role: &role, Active: &active, Limit: defaultPerPage, Offset: 0}
	users.On("List", mock.Anything, expected).Return([]domain.User{*technician("tech-1")}, nil)
	users.On("Count", mock.Anything, expected).Return(1, nil)

	page, err := NewUserService(users, bcrypt.MinCost).ListUsers(context.Background(), UserListFilter{Role: &role, Active: &active})

	require.NoError(t, err)
	assert.Len(t, page.Users, 1)
	assert.Equal(t, Pagination{Page: 1, PerPage: defaultPerPage, Total: 1, LastPage: 1}, page.Pagination)
}

func TestCreateUser(t *testing.T) {
	t.Run("hashes the password", func(t *testing.T) {
		users := &mockUserRepo{}
		users.On("GetByEmail", mock.Anything, "ann@example.com").Return(nil, pgx.ErrNoRows)
		users.On("Create", mock.Anything, mock.Anything).Return(nil)

		user, err := NewUserService(users, bcrypt.MinCost).CreateUser(context.Background(), UserCreateInput{
			Name: "Ann", Email: " Ann@Example.com ", Password: "s3cretpass", Role: domain.UserRoleTechnician,
		})

		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", user.Email)
		assert.True(t, user.Active)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")))
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		users := &mockUserRepo{}
		users.On("GetByEmail", mock.Anything, "ann@example.com").Return(&domain.User{ID: "u1"}, nil)

		_, err := NewUserService(users, bcrypt.MinCost).CreateUser(context.Background(), UserCreateInput{
			Email: "ann@example.com", Password: "s3cretpass", Role: domain.UserRoleCustomer,
		})

		assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := NewUserService(&mockUserRepo{}, bcrypt.MinCost).CreateUser(context.Background(), UserCreateInput{
			Email: "x@example.com", Password: "short", Role: "owner",
		})

		var de *apperrors.DomainError
		require.ErrorAs(t, err, &de)
		assert.Contains(t, de.Details, "password")
		assert.Contains(t, de.Details, "role")
	})
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cretpass"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &mockUserRepo{}
	users.On("GetByEmail", mock.Anything, "tech@example.com").
		Return(&domain.User{ID: "tech-1", Role: domain.UserRoleTechnician, Active: true, PasswordHash: string(hash)}, nil)
	users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, pgx.ErrNoRows)

	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5}, users)

	user, token, _, err := svc.Login(context.Background(), "tech@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, "tech-1", user.ID)
	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserRoleTechnician, claims.Role)

	_, _, _, err = svc.Login(context.Background(), "tech@example.com", "wrong")
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	_, _, _, err = svc.Login(context.Background(), "nobody@example.com", "s3cretpass")
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}
