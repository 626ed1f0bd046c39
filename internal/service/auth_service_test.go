package service

import (
	"context"
	"testing"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService() *AuthService {
	return NewAuthService(memory.NewUserRepo(), "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()

	user, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "an@example.com", Password: "matkhau123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.Password, "hash không được trả về")

	_, err = svc.Register(ctx, domain.RegisterUserDTO{Email: "an@example.com", Password: "khac"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	resp, err := svc.Login(ctx, domain.LoginUserDTO{Email: "an@example.com", Password: "matkhau123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.UserID)

	_, err = svc.Login(ctx, domain.LoginUserDTO{Email: "an@example.com", Password: "sai-mat-khau"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, domain.LoginUserDTO{Email: "khong-ton-tai@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterAdminRole(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()
	user, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "boss@example.com", Password: "matkhau123", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()
	svc := newAuthService()

	_, err := svc.Register(ctx, domain.RegisterUserDTO{Email: "an@example.com", Password: "matkhau123"})
	require.NoError(t, err)
	resp, err := svc.Login(ctx, domain.LoginUserDTO{Email: "an@example.com", Password: "matkhau123"})
	require.NoError(t, err)

	_, claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, claims["sub"])
	assert.Equal(t, "an@example.com", claims["email"])
	assert.Equal(t, domain.RoleUser, claims["role"])

	_, _, err = svc.ValidateToken("khong.phai.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Token ký bằng secret khác bị từ chối.
	other := NewAuthService(memory.NewUserRepo(), "secret-khac", time.Hour)
	_, _, err = other.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
