package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Admission errors. Each rejection is also recorded on the job record
	// itself so it stays visible for audit.
	ErrInvalidRequest     = errors.New("invalid request parameters")
	ErrQueueLimitExceeded = errors.New("queue limit exceeded")
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// Scheduling / execution errors
	ErrNoResourceKey     = errors.New("no api key available")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrNotOwner          = errors.New("caller does not own this job")
)
