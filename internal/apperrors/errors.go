package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")

	ErrAddressNotFound = errors.New("address not found")

	ErrProductNotFound = errors.New("product not found")
	ErrProductInactive = errors.New("product is not available")
	ErrProductInvalid  = errors.New("product is invalid")

	ErrOrderNotFound = errors.New("order not found")
	ErrOrderEmpty    = errors.New("order has no items")
	ErrOrderInvalid  = errors.New("order is invalid")

	ErrRoleUnknown = errors.New("unknown role")
)
