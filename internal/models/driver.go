package models

import "time"

// Driver represents a licensed bus driver
type Driver struct {
	ID            string    `json:"id" db:"id"`
	FullName      string    `json:"fullName" db:"full_name"`
	LicenseNumber string    `json:"licenseNumber" db:"license_number"`
	Phone         string    `json:"phone" db:"phone"`
	IsActive      bool      `json:"isActive" db:"is_active"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// CreateDriverRequest represents the request to register a driver
type CreateDriverRequest struct {
	FullName      string `json:"fullName" binding:"required"`
	LicenseNumber string `json:"licenseNumber" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
}

// UpdateDriverRequest represents a partial update of a driver
type UpdateDriverRequest struct {
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"isActive"`
}
