package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Name        string
	Description string
	Farm        string
	Unit        string
	Price       decimal.Decimal
	IsActive    bool
}
