package user

import "github.com/google/uuid"

const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         string
}
