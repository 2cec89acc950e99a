package models

type Category struct {
	ID        string  `json:"id" validate:"required,max=36"`
	Name      string  `json:"name" validate:"required,max=100"`
	Type      string  `json:"type" validate:"required,max=10"`
	CreatedAt string  `json:"created_at" validate:"required,max=32"`
	Icon      *string `json:"icon" validate:"omitempty,max=50"`
}
