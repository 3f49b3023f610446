package giftcards

import (
	"tourledger/src/catalog"
	"tourledger/src/types"
)

// OriginalAmount is the pre-discount amount in cents for paymentType, from
// major-unit session pricing.
func OriginalAmount(price, deposit float64, quantity int, paymentType types.PaymentType) int64 {
	qty := int64(max(quantity, 1))
	switch paymentType {
	case types.PAYMENT_DEPOSIT:
		return catalog.Cents(deposit) * qty
	case types.PAYMENT_BALANCE:
		return (catalog.Cents(price) - catalog.Cents(deposit)) * qty
	}
	return catalog.Cents(price) * qty
}

// DiscountFor returns the receipt discount, never negative.
func DiscountFor(original, charged int64) int64 {
	return max(original-charged, 0)
}
