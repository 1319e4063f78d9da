package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can list registry and discovered devices.
	RoleViewer Role = "viewer"

	// RoleOperator can also switch device outputs.
	RoleOperator Role = "operator"

	// RoleAdmin can also scan the bus and save discovered devices.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if the role is known.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)
