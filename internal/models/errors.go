package models

import "errors"

// Business-rule rejections. These are expected outcomes, returned as typed
// errors so callers and the HTTP layer can map them without string matching.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateReward     = errors.New("reward already granted for this reference")
	ErrSelfTransfer        = errors.New("cannot transfer points to yourself")

	ErrUserNotFound     = errors.New("user not found")
	ErrUserInactive     = errors.New("user is not active")
	ErrLocationNotFound = errors.New("location not found")
	ErrLocationInactive = errors.New("location is not active")
	ErrEventNotStarted  = errors.New("event has not started yet")
	ErrEventEnded       = errors.New("event has ended")
	ErrAlreadyCollected = errors.New("location already collected")

	ErrRecordNotFound  = errors.New("record not found")
	ErrAccountNotFound = errors.New("ledger account not found")

	// ErrReceiptPending is returned by ChainClient.MintReceipt while the
	// submitted transaction has not been included in a block yet.
	ErrReceiptPending = errors.New("transaction receipt not available yet")
)
