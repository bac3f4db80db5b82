package models

import (
	"time"
)

// Bus represents a vehicle in the fleet
type Bus struct {
	ID          string    `json:"id" db:"id"`
	PlateNumber string    `json:"plateNumber" db:"plate_number"`
	Capacity    int       `json:"capacity" db:"capacity"`
	Model       *string   `json:"model,omitempty" db:"model"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// CreateBusRequest represents the request to register a bus
type CreateBusRequest struct {
	PlateNumber string  `json:"plateNumber" binding:"required"`
	Capacity    int     `json:"capacity" binding:"required,min=1"`
	Model       *string `json:"model"`
}

// UpdateBusRequest represents a partial update of a bus
type UpdateBusRequest struct {
	Model    *string `json:"model"`
	IsActive *bool   `json:"isActive"`
}
