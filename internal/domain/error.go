package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidPhoneNumber = errors.New("phone number must be 12 digits starting with 254")
	ErrNotPending         = errors.New("payment is not pending")
	ErrRateLimited        = errors.New("too many payment attempts")

	// Gateway errors
	ErrUpstreamAuth    = errors.New("gateway credential exchange failed")
	ErrUpstreamPayment = errors.New("gateway rejected payment request")

	// Storage errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
