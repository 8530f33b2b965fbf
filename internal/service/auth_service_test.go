package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/user"
	"github.com/hai-soft/license-admin-api/internal/ierr"
	"github.com/hai-soft/license-admin-api/internal/storage/memstorage"
)

func newAuthService(t *testing.T) (*AuthService, *memstorage.UserRepositoryMock) {
	t.Helper()
	users := memstorage.NewUserRepositoryMock()
	cfg := config.JWTConfig{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
		Issuer:   "license-admin-api",
	}
	return NewAuthService(users, cfg, zap.NewNop()), users
}

func TestLoginAndValidate(t *testing.T) {
	svc, _ := newAuthService(t)

	token, u, err := svc.Login(context.Background(), "admin", "adminpassword")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Role != user.RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" || claims.Role != user.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthService(t)

	_, _, err := svc.Login(context.Background(), "admin", "nope")
	if !errors.Is(err, ierr.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newAuthService(t)

	_, _, err := svc.Login(context.Background(), "ghost", "whatever")
	if !errors.Is(err, ierr.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAgentLogin(t *testing.T) {
	svc, users := newAuthService(t)
	if err := users.AddAgent("agent@haisoft.vn", "agentpass"); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	token, u, err := svc.Login(context.Background(), "agent@haisoft.vn", "agentpass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Role != user.RoleAgent {
		t.Errorf("role = %q, want agent", u.Role)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Email != "agent@haisoft.vn" {
		t.Errorf("email claim = %q", claims.Email)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	svc, _ := newAuthService(t)

	if _, err := svc.ValidateToken("not.a.token"); !errors.Is(err, ierr.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
