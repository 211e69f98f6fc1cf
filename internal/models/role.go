package models

import (
	"fmt"

	"github.com/nkiryanov/farmbox/internal/apperrors"
)

// Privilege level of a user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Parse role from its string form
// Any value other than known roles returns apperrors.ErrRoleUnknown
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrRoleUnknown, value)
	}
}

func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
