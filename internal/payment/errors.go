package payment

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized caller")
	ErrInsufficientDeposit = errors.New("attached deposit not enough")
	ErrInvalidMessage      = errors.New("invalid transfer message")
	ErrInsufficientAmount  = errors.New("transferred amount not enough")
	ErrDuplicateOrder      = errors.New("order already completed")
	ErrNotFound            = errors.New("order not found")
	ErrInvalidState        = errors.New("order not in a refundable state")
	ErrTooManyResults      = errors.New("continuation expects exactly one result")

	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrTransferNotFound   = errors.New("transfer not found")
	ErrAlreadyResolved    = errors.New("transfer already resolved")
	ErrAlreadyClaimed     = errors.New("transfer already claimed")
	ErrBusy               = errors.New("order is being processed by another call")
)
