package reminder

import "errors"

// Sentinel errors for the reminder service layer.
var (
	ErrNotFound    = errors.New("reminder not found")
	ErrAlreadySent = errors.New("reminder was already sent")
	ErrNoRecipient = errors.New("reminder has no recipients")
)
