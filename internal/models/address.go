package models

import (
	"time"

	"github.com/google/uuid"
)

type Address struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	CreatedAt  time.Time
	Label      string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	IsDefault  bool
}
