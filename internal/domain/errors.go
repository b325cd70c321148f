package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrForbidden      = errors.New("forbidden")
	ErrSellerMismatch = errors.New("item does not belong to the given seller")
	ErrUnavailable    = errors.New("service temporarily unavailable")
)

// ModerationError is returned when the moderation collaborator rejects
// content. It is a validation failure for the sender, not a security
// event.
type ModerationError struct {
	Term string
}

func (e *ModerationError) Error() string {
	if e.Term == "" {
		return "content rejected by moderation"
	}
	return fmt.Sprintf("content rejected by moderation: %q", e.Term)
}
