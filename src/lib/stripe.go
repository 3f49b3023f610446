package lib

import (
	"context"
	"fmt"
	"strconv"
	"tourledger/src/config"
	"tourledger/src/models"
	"tourledger/src/types"

	"github.com/stripe/stripe-go/v82"
)

func NewStripeClient(apiKey string) *stripe.Client {
	return stripe.NewClient(apiKey)
}

type Checkout struct {
	sc  *stripe.Client
	cfg config.StripeConfig
}

func NewCheckout(sc *stripe.Client, cfg config.StripeConfig) *Checkout {
	return &Checkout{sc: sc, cfg: cfg}
}

// BalanceMetadata carries what the balance webhook needs to find the open booking.
func BalanceMetadata(b *models.Booking) map[string]string {
	md := map[string]string{
		"booking_id":       b.ID.String(),
		"user_id":          b.UserID,
		"tour_id":          b.TourID,
		"session_id":       b.SessionID,
		"payment_type":     string(types.PAYMENT_BALANCE),
		"quantity":         strconv.Itoa(max(b.Quantity, 1)),
		"tour_title":       b.TourTitle,
		"tour_destination": b.TourDestination,
	}
	if b.SessionDate != nil {
		md["session_date"] = b.SessionDate.Format("2006-01-02")
	}
	if b.SessionEndDate != nil {
		md["session_end_date"] = b.SessionEndDate.Format("2006-01-02")
	}
	return md
}

// BalanceCheckout opens a hosted checkout for the booking's remaining balance.
func (c *Checkout) BalanceCheckout(ctx context.Context, b *models.Booking) (*stripe.CheckoutSession, error) {
	remaining := b.RemainingBalance()
	if remaining <= 0 {
		return nil, fmt.Errorf("%w: booking %s has no remaining balance", types.ErrValidation, b.ID)
	}
	currency := b.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}
	metadata := BalanceMetadata(b)
	piParams := &stripe.CheckoutSessionCreatePaymentIntentDataParams{}
	for k, v := range metadata {
		piParams.AddMetadata(k, v)
	}
	name := "Remaining balance"
	if b.TourTitle != "" {
		name = fmt.Sprintf("Remaining balance: %s", b.TourTitle)
	}
	params := &stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentIntentData: piParams,
		Metadata:          metadata,
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(remaining),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if b.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(b.CustomerEmail)
	}
	return c.sc.V1CheckoutSessions.Create(ctx, params)
}
