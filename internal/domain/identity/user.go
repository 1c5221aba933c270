package identity

import (
	"strings"

	"github.com/erp/chemstock/internal/domain/shared"
)

// Role represents what a user may do in the inventory system
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleLogistician Role = "logistician"
	RoleEngineer    Role = "engineer"
)

// IsValid checks if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleLogistician, RoleEngineer:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Label returns the display name used in tables
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Администратор"
	case RoleLogistician:
		return "Логист"
	case RoleEngineer:
		return "Инженер"
	}
	return string(r)
}

// IsStaff reports whether the role manages stock and requisitions (admin or logistician)
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleLogistician
}

// User is an account of the inventory API
type User struct {
	ID                  int64       `json:"id"`
	Username            string      `json:"username"`
	Email               string      `json:"email"`
	FirstName           string      `json:"first_name"`
	LastName            string      `json:"last_name"`
	Role                Role        `json:"role"`
	RelatedFacility     *shared.Ref `json:"related_facility"`
	RelatedFacilityName string      `json:"related_facility_name,omitempty"`
}

// FullName returns "First Last", falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// IsStaff reports whether the user has an admin or logistician role
func (u *User) IsStaff() bool {
	return u != nil && u.Role.IsStaff()
}

// FacilityID returns the facility an engineer is attached to, 0 if none
func (u *User) FacilityID() int64 {
	if u == nil || u.RelatedFacility == nil {
		return 0
	}
	return u.RelatedFacility.ID
}
