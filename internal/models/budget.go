package models

import "github.com/shopspring/decimal"

type Budget struct {
	ID           string           `json:"id" validate:"required,max=36"`
	Category     string           `json:"category" validate:"required,max=100"`
	MonthlyLimit *decimal.Decimal `json:"monthly_limit" validate:"required"`
	CreatedAt    string           `json:"created_at" validate:"required,max=32"`
	UpdatedAt    string           `json:"updated_at" validate:"required,max=32"`
}
