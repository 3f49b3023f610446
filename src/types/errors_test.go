package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidSignature, http.StatusBadRequest},
		{fmt.Errorf("sync: %w", ErrMissingMetadata), http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("booking 1: %w", ErrNotFound), http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrExpired, http.StatusUnprocessableEntity},
		{fmt.Errorf("upsert: %w", ErrPersistence), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), "%v", c.err)
	}
}

func TestGiftCardMessageIsDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, err := range []error{ErrNotFound, ErrExpired, ErrAlreadyUsed, ErrCancelled, ErrInactive, ErrValidation} {
		msg := GiftCardMessage(fmt.Errorf("validate: %w", err))
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
}

func TestParsePaymentType(t *testing.T) {
	_, ok := ParsePaymentType("")
	assert.False(t, ok)

	pt, ok := ParsePaymentType(" Deposit")
	assert.True(t, ok)
	assert.Equal(t, PAYMENT_DEPOSIT, pt)

	_, ok = ParsePaymentType("installment")
	assert.False(t, ok)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "279.00", FormatCents(27900))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-200.00", FormatCents(-20000))
}
