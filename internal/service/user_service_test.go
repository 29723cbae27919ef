package service_test

import (
	"context"
	"testing"

	"bizledger/internal/apperror"
	"bizledger/internal/model"
	"bizledger/internal/service"
	"bizledger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := service.NewUserService(testutil.NewInMemoryUserStore())

	user, err := svc.Register(ctx, service.RegisterUserRequest{
		Email:    "book@keeper.test",
		Name:     "Pat",
		Password: "correct-horse-battery",
		Role:     model.RoleAccountant,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAccountant, user.Role)

	tokens, err := svc.Login(ctx, service.LoginRequest{
		Email:    "book@keeper.test",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Token)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, user.ID, tokens.User.ID)
}

func TestUserRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := service.NewUserService(testutil.NewInMemoryUserStore())

	req := service.RegisterUserRequest{
		Email:    "book@keeper.test",
		Name:     "Pat",
		Password: "correct-horse-battery",
		Role:     model.RoleViewer,
	}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.True(t, apperror.IsValidation(err))
}

func TestUserLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := service.NewUserService(testutil.NewInMemoryUserStore())

	_, err := svc.Register(ctx, service.RegisterUserRequest{
		Email:    "book@keeper.test",
		Name:     "Pat",
		Password: "correct-horse-battery",
		Role:     model.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, service.LoginRequest{
		Email:    "book@keeper.test",
		Password: "wrong",
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Login(ctx, service.LoginRequest{
		Email:    "nobody@keeper.test",
		Password: "correct-horse-battery",
	})
	assert.True(t, apperror.IsValidation(err))
}
