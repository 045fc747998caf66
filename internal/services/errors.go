package services

import (
	"errors"
	"net/http"
)

// Error taxonomy for the ledger and approval workflow. Handlers map these to
// HTTP statuses; everything else surfaces as a 500.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSplit      = errors.New("invalid split")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDuplicateClaim    = errors.New("duplicate claim")
)

// StatusForError maps a service error to an HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDuplicateClaim):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidSplit):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
