package identity

import (
	"github.com/erp/chemstock/internal/domain/identity"
)

// LoginRequest holds credentials for /auth/jwt/create/
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the djoser JWT answer
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// LoginResult is returned after a successful login
type LoginResult struct {
	Tokens TokenPair
	User   *identity.User
}

// CreateUserRequest is the payload of POST /users/
type CreateUserRequest struct {
	Username        string        `json:"username" validate:"required,max=150"`
	Email           string        `json:"email" validate:"omitempty,email"`
	Password        string        `json:"password" validate:"required"`
	Role            identity.Role `json:"role" validate:"required,oneof=admin logistician engineer"`
	RelatedFacility *int64        `json:"related_facility" validate:"required_if=Role engineer"`
}

// UpdateUserRequest is the payload of PATCH /users/{id}/.
// An empty password keeps the current one.
type UpdateUserRequest struct {
	Username        string        `json:"username" validate:"required,max=150"`
	Email           string        `json:"email" validate:"omitempty,email"`
	Password        string        `json:"password,omitempty"`
	Role            identity.Role `json:"role" validate:"required,oneof=admin logistician engineer"`
	RelatedFacility *int64        `json:"related_facility" validate:"required_if=Role engineer"`
}

// normalizeFacility clears the facility for roles that are not bound to one
func normalizeFacility(role identity.Role, facility *int64) *int64 {
	if role != identity.RoleEngineer {
		return nil
	}
	return facility
}
