package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	Name           string
	Role           Role
	IsActive       bool
	HashedPassword string
}

// Identity is the request scoped view of an authenticated user
// It never carries the password hash
type Identity struct {
	ID       uuid.UUID
	Role     Role
	Email    string
	IsActive bool
}

func (u User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Role:     u.Role,
		Email:    u.Email,
		IsActive: u.IsActive,
	}
}
