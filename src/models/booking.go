package models

import (
	"time"
	"tourledger/src/types"

	"github.com/google/uuid"
)

type Booking struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	UserID    string              `gorm:"index:idx_bookings_match" json:"user_id"`
	TourID    string              `gorm:"index:idx_bookings_match" json:"tour_id"`
	SessionID string              `gorm:"index:idx_bookings_match" json:"session_id"`
	Quantity  int                 `gorm:"default:1" json:"quantity"`
	Status    types.BookingStatus `gorm:"index;default:'pending'" json:"status"`
	Currency  string              `gorm:"default:'usd'" json:"currency,omitempty"`

	TotalAmount   int64 `json:"total_amount"`
	DepositAmount int64 `json:"deposit_amount"`
	AmountPaid    int64 `json:"amount_paid"`

	StripePaymentIntentID string `gorm:"uniqueIndex;not null" json:"stripe_payment_intent_id"`

	DepositDueDate *time.Time `gorm:"index" json:"deposit_due_date,omitempty"`
	BalanceDueDate *time.Time `gorm:"index" json:"balance_due_date,omitempty"`

	TourTitle       string     `json:"tour_title,omitempty"`
	TourDestination string     `json:"tour_destination,omitempty"`
	SessionDate     *time.Time `json:"session_date,omitempty"`
	SessionEndDate  *time.Time `json:"session_end_date,omitempty"`

	CustomerEmail    string `json:"customer_email,omitempty"`
	CustomerName     string `json:"customer_name,omitempty"`
	GiftCardCode     string `json:"gift_card_code,omitempty"`
	GiftCardDiscount int64  `json:"gift_card_discount,omitempty"`

	types.Timestamps
}

// RemainingBalance is negative when the customer is in credit.
func (b *Booking) RemainingBalance() int64 {
	return b.TotalAmount - b.AmountPaid
}
