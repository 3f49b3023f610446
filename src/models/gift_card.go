package models

import (
	"time"
	"tourledger/src/types"

	"github.com/google/uuid"
)

type GiftCard struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Code             string               `gorm:"type:varchar(12);uniqueIndex;not null" json:"code"`
	Amount           int64                `gorm:"not null" json:"amount"`
	RemainingBalance int64                `gorm:"not null" json:"remaining_balance"`
	Status           types.GiftCardStatus `gorm:"index;default:'active'" json:"status"`
	ExpiresAt        *time.Time           `json:"expires_at,omitempty"`

	PurchaseRef     *string `gorm:"uniqueIndex" json:"-"`
	PurchaserUserID string  `json:"purchaser_user_id,omitempty"`
	RecipientEmail  string  `json:"recipient_email,omitempty"`
	RecipientName   string  `json:"recipient_name,omitempty"`
	Message         string  `json:"message,omitempty"`

	Transactions []GiftCardTransaction `gorm:"foreignKey:gift_card_id" json:"transactions,omitempty"`

	types.Timestamps
}

func (g *GiftCard) IsExpired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// GiftCardTransaction is append-only: one row per redemption.
type GiftCardTransaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	GiftCardID uuid.UUID  `gorm:"type:uuid;index;not null" json:"gift_card_id"`
	BookingID  *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	UserID     *string    `json:"user_id,omitempty"`
	AmountUsed int64      `gorm:"not null" json:"amount_used"`
	CreatedAt  time.Time  `gorm:"autoCreateTime:nano" json:"created_at"`
}
