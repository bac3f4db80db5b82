package models

import "strings"

// Role is the closed set of principal roles
type Role string

const (
	RolePassenger Role = "PASSENGER"
	RoleDriver    Role = "DRIVER"
	RoleStaff     Role = "STAFF"
	RoleAdmin     Role = "ADMIN"
)

// Capability names an operation class guarded by the access gate
type Capability string

const (
	CapBookSeats      Capability = "book_seats"
	CapManageBookings Capability = "manage_bookings"
	CapManageTrips    Capability = "manage_trips"
	CapReportLocation Capability = "report_location"
	CapManageNetwork  Capability = "manage_network"
)

var roleCapabilities = map[Role][]Capability{
	RolePassenger: {CapBookSeats},
	RoleDriver:    {CapBookSeats, CapReportLocation},
	RoleStaff:     {CapBookSeats, CapManageBookings, CapManageTrips, CapReportLocation},
	RoleAdmin:     {CapBookSeats, CapManageBookings, CapManageTrips, CapReportLocation, CapManageNetwork},
}

// ParseRole maps a claim value onto a known role
func ParseRole(v string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(v)))
	_, ok := roleCapabilities[r]
	return r, ok
}

// Can reports whether the role grants capability c
func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Principal is the authenticated caller of an operation
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// Can reports whether the principal's role grants capability c
func (p Principal) Can(c Capability) bool {
	return p.Role.Can(c)
}
