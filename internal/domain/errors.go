package domain

import "errors"

var (
	ErrAlreadyInitialized  = errors.New("already initialized")
	ErrNotInitialized      = errors.New("registry not initialized")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInactiveCommitment  = errors.New("commitment is not active")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidRules        = errors.New("invalid commitment rules")
	ErrInsufficientBalance = errors.New("insufficient free balance")
	ErrNotExpired          = errors.New("commitment has not expired")
	ErrTransferFailed      = errors.New("asset transfer failed")
	ErrOverDeallocation    = errors.New("deallocation exceeds total allocated")
	ErrLockHeld            = errors.New("lock already held")
)
