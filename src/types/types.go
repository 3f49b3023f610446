package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type BookingStatus string

const (
	BOOKING_PENDING      BookingStatus = "pending"
	BOOKING_DEPOSIT_PAID BookingStatus = "deposit_paid"
	BOOKING_FULLY_PAID   BookingStatus = "fully_paid"
	BOOKING_COMPLETED    BookingStatus = "completed"
	BOOKING_CANCELLED    BookingStatus = "cancelled"
	BOOKING_REFUNDED     BookingStatus = "refunded"
)

type PaymentType string

const (
	PAYMENT_DEPOSIT PaymentType = "deposit"
	PAYMENT_BALANCE PaymentType = "balance"
	PAYMENT_FULL    PaymentType = "full"
)

func ParsePaymentType(s string) (PaymentType, bool) {
	switch PaymentType(strings.ToLower(strings.TrimSpace(s))) {
	case PAYMENT_DEPOSIT:
		return PAYMENT_DEPOSIT, true
	case PAYMENT_BALANCE:
		return PAYMENT_BALANCE, true
	case PAYMENT_FULL:
		return PAYMENT_FULL, true
	}
	return "", false
}

type GiftCardStatus string

const (
	GIFT_CARD_ACTIVE    GiftCardStatus = "active"
	GIFT_CARD_USED      GiftCardStatus = "used"
	GIFT_CARD_EXPIRED   GiftCardStatus = "expired"
	GIFT_CARD_CANCELLED GiftCardStatus = "cancelled"
)

type Metadata map[string]any

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type CreateBookingRequestBody struct {
	UserID          string  `json:"user_id"`
	TourID          string  `json:"tour_id"`
	SessionID       string  `json:"session_id"`
	PaymentType     string  `json:"payment_type"`
	Quantity        int     `json:"quantity" binding:"omitempty,min=1"`
	AmountPaid      int64   `json:"amount_paid" binding:"min=0"`
	PaymentIntentID string  `json:"payment_intent_id,omitempty"`
	TourTitle       string  `json:"tour_title,omitempty"`
	TourDestination string  `json:"tour_destination,omitempty"`
	CustomerEmail   string  `json:"customer_email,omitempty" binding:"omitempty,email"`
	CustomerName    string  `json:"customer_name,omitempty"`
	GiftCardCode    string  `json:"gift_card_code,omitempty" binding:"omitempty,giftcode"`
	SessionPrice    float64 `json:"session_price,omitempty"`
	SessionDeposit  float64 `json:"session_deposit,omitempty"`
}

type ChangeSessionRequestBody struct {
	BookingID    string `json:"bookingId" binding:"required,uuid"`
	NewSessionID string `json:"newSessionId"`
	NewTourID    string `json:"newTourId,omitempty"`
}

type ValidateGiftCardRequestBody struct {
	Code string `json:"code" binding:"required"`
}

type ApplyGiftCardRequestBody struct {
	Code        string `json:"code" binding:"required"`
	AmountToPay int64  `json:"amount_to_pay" binding:"required,min=1"`
	BookingID   string `json:"booking_id,omitempty" binding:"omitempty,uuid"`
	UserID      string `json:"user_id,omitempty"`
}

type APIResponseGiftCard struct {
	Code             string         `json:"code"`
	Amount           int64          `json:"amount"`
	RemainingBalance int64          `json:"remaining_balance"`
	Status           GiftCardStatus `json:"status"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
}

type APIResponseRedemption struct {
	Code             string         `json:"code"`
	Discount         int64          `json:"discount"`
	RemainingBalance int64          `json:"remaining_balance"`
	Status           GiftCardStatus `json:"status"`
}

type APIResponseReminders struct {
	BalanceReminders int `json:"balance_reminders"`
	DepositReminders int `json:"deposit_reminders"`
	Failed           int `json:"failed"`
}

type Handler func(payload string)
