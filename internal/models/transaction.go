package models

import (
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID          string           `json:"id" validate:"required,max=36"`
	Date        string           `json:"date" validate:"required,max=10"`
	Category    string           `json:"category" validate:"required,max=100"`
	Type        string           `json:"type" validate:"required,max=10"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description"`
	CreatedAt   string           `json:"created_at" validate:"required,max=32"`
	UpdatedAt   string           `json:"updated_at" validate:"required,max=32"`
	Synced      *int             `json:"synced,omitempty"`
}

// SyncedOrDefault returns the synced flag, treating an omitted value as 1.
func (t Transaction) SyncedOrDefault() int {
	if t.Synced == nil {
		return 1
	}
	return *t.Synced
}
