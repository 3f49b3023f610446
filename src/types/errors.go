package types

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMissingMetadata  = errors.New("missing metadata")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrPersistence      = errors.New("persistence failure")

	ErrAlreadyUsed = errors.New("gift card has already been used")
	ErrExpired     = errors.New("gift card has expired")
	ErrCancelled   = errors.New("gift card has been cancelled")
	ErrInactive    = errors.New("gift card is not active")
)

// HTTPStatus maps an error from the taxonomy to the status code returned to callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrMissingMetadata),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrAlreadyUsed),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrCancelled),
		errors.Is(err, ErrInactive):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// GiftCardMessage returns the checkout-facing message for a gift card validation outcome.
func GiftCardMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Gift card not found"
	case errors.Is(err, ErrExpired):
		return "This gift card has expired"
	case errors.Is(err, ErrAlreadyUsed):
		return "This gift card has already been fully used"
	case errors.Is(err, ErrCancelled):
		return "This gift card has been cancelled"
	case errors.Is(err, ErrInactive):
		return "This gift card is not active"
	case errors.Is(err, ErrValidation):
		return "Invalid gift card code format"
	}
	return "Could not validate gift card"
}
