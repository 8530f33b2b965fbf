package memstorage

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hai-soft/license-admin-api/internal/domain/user"
	"github.com/hai-soft/license-admin-api/internal/ierr"
)

type UserRepositoryMock struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

// NewUserRepositoryMock seeds a default admin account. Agent accounts are
// added via AddAgent, typically at startup from the agents table.
func NewUserRepositoryMock() *UserRepositoryMock {
	repo := &UserRepositoryMock{
		users: make(map[string]*user.User),
	}

	adminPassword := "adminpassword"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)

	adminUser := &user.User{
		ID:           uuid.New(),
		Username:     "admin",
		Email:        "admin@hai-soft.local",
		PasswordHash: string(hashedPassword),
		Role:         user.RoleAdmin,
	}
	repo.users[strings.ToLower(adminUser.Username)] = adminUser

	return repo
}

func (r *UserRepositoryMock) AddAgent(email, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[strings.ToLower(email)] = &user.User{
		ID:           uuid.New(),
		Username:     email,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         user.RoleAgent,
	}
	return nil
}

func (r *UserRepositoryMock) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}

func CheckPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
