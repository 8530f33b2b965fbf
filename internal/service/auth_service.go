package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hai-soft/license-admin-api/internal/config"
	"github.com/hai-soft/license-admin-api/internal/domain/user"
	"github.com/hai-soft/license-admin-api/internal/ierr"
	"github.com/hai-soft/license-admin-api/internal/storage/memstorage"
)

// UserRepository is the slice of user storage the auth service needs.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

// Claims carried inside the access token.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  UserRepository
	cfg    config.JWTConfig
	logger *zap.Logger
}

func NewAuthService(users UserRepository, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		cfg:    cfg,
		logger: logger.Named("AuthService"),
	}
}

// Login checks credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ierr.ErrUserNotFound) {
			return "", nil, ierr.ErrInvalidCredentials
		}
		s.logger.Error("User lookup failed", zap.String("username", username), zap.Error(err))
		return "", nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if !memstorage.CheckPassword(u.PasswordHash, password) {
		s.logger.Warn("Invalid password attempt", zap.String("username", username))
		return "", nil, ierr.ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		s.logger.Error("Token signing failed", zap.String("username", username), zap.Error(err))
		return "", nil, fmt.Errorf("%w: token signing failed", ierr.ErrInternalServer)
	}

	s.logger.Info("User logged in", zap.String("username", u.Username), zap.String("role", u.Role))
	return token, u, nil
}

func (s *AuthService) issueToken(u *user.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

// ValidateToken parses and verifies an access token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ierr.ErrTokenNoClaims
	}
	return claims, nil
}
