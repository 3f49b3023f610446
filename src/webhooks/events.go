// Package webhooks verifies Stripe deliveries and decodes them into typed events.
package webhooks

import (
	"time"
	"tourledger/src/types"
)

// Event is one of *PaymentCaptured, *PaymentFailed, *GiftCardPurchased or *Unknown.
type Event interface {
	EventID() string
	isEvent()
}

type Customer struct {
	Email string
	Name  string
	Phone string
}

type Billing struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	TaxID      string
}

func (b *Billing) Empty() bool {
	return b == nil || *b == Billing{}
}

// Pricing carries session pricing supplied inline with the payment, in major units.
type Pricing struct {
	Price   float64
	Deposit float64
}

type PaymentCaptured struct {
	ID       string
	Type     string
	IntentID string
	// Amount actually captured by the gateway, in cents.
	Amount   int64
	Currency string

	UserID      string
	TourID      string
	SessionID   string
	PaymentType types.PaymentType
	Quantity    int

	TourTitle       string
	TourDestination string
	SessionDate     *time.Time
	SessionEndDate  *time.Time
	Pricing         *Pricing

	GiftCardCode string
	Customer     Customer
	Billing      *Billing
}

type PaymentFailed struct {
	ID        string
	IntentID  string
	UserID    string
	TourID    string
	SessionID string
	Amount    int64
	Reason    string
}

type GiftCardPurchased struct {
	ID string
	// PurchaseRef is the payment intent id, falling back to the checkout session id.
	PurchaseRef     string
	Amount          int64
	Currency        string
	PurchaserUserID string
	PurchaserEmail  string
	RecipientEmail  string
	RecipientName   string
	Message         string
}

type Unknown struct {
	ID   string
	Type string
}

func (e *PaymentCaptured) EventID() string   { return e.ID }
func (e *PaymentFailed) EventID() string     { return e.ID }
func (e *GiftCardPurchased) EventID() string { return e.ID }
func (e *Unknown) EventID() string           { return e.ID }

func (*PaymentCaptured) isEvent()   {}
func (*PaymentFailed) isEvent()     {}
func (*GiftCardPurchased) isEvent() {}
func (*Unknown) isEvent()           {}
