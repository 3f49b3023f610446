package webhooks

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"tourledger/src/types"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const purchaseTypeGiftCard = "gift_card"

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Parse verifies the Stripe-Signature header and decodes the event. Signature
// failures wrap types.ErrInvalidSignature and must not cause any state change.
// A verifier without a secret rejects every payload.
func (v *Verifier) Parse(payload []byte, signatureHeader string) (Event, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", types.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return &Unknown{ID: event.ID, Type: string(event.Type)}, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return fromCheckoutSession(event.ID, string(event.Type), &cs)
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		return fromPaymentIntent(event.ID, string(event.Type), &pi)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		failed := &PaymentFailed{
			ID:        event.ID,
			IntentID:  pi.ID,
			UserID:    pi.Metadata["user_id"],
			TourID:    pi.Metadata["tour_id"],
			SessionID: pi.Metadata["session_id"],
			Amount:    pi.Amount,
		}
		if pi.LastPaymentError != nil {
			failed.Reason = pi.LastPaymentError.Msg
		}
		return failed, nil
	}
	return &Unknown{ID: event.ID, Type: string(event.Type)}, nil
}

func fromCheckoutSession(id, eventType string, cs *stripe.CheckoutSession) (Event, error) {
	if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return &Unknown{ID: id, Type: eventType}, nil
	}
	intentID := ""
	if cs.PaymentIntent != nil {
		intentID = cs.PaymentIntent.ID
	}
	customer := Customer{Email: cs.CustomerEmail}
	var billing *Billing
	if d := cs.CustomerDetails; d != nil {
		if d.Email != "" {
			customer.Email = d.Email
		}
		customer.Name = d.Name
		customer.Phone = d.Phone
		billing = &Billing{}
		if d.Address != nil {
			billing.Line1 = d.Address.Line1
			billing.Line2 = d.Address.Line2
			billing.City = d.Address.City
			billing.State = d.Address.State
			billing.PostalCode = d.Address.PostalCode
			billing.Country = d.Address.Country
		}
		if len(d.TaxIDs) > 0 && d.TaxIDs[0] != nil {
			billing.TaxID = d.TaxIDs[0].Value
		}
	}

	md := cs.Metadata
	if md["purchase_type"] == purchaseTypeGiftCard {
		ref := intentID
		if ref == "" {
			ref = cs.ID
		}
		return giftCardPurchase(id, ref, cs.AmountTotal, string(cs.Currency), md, customer.Email), nil
	}
	if intentID == "" {
		return nil, fmt.Errorf("checkout session %s: %w: payment_intent", cs.ID, types.ErrMissingMetadata)
	}
	return capture(id, eventType, intentID, cs.AmountTotal, string(cs.Currency), md, customer, billing)
}

func fromPaymentIntent(id, eventType string, pi *stripe.PaymentIntent) (Event, error) {
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	customer := Customer{Email: pi.ReceiptEmail, Name: pi.Metadata["customer_name"]}
	if customer.Email == "" {
		customer.Email = pi.Metadata["customer_email"]
	}
	if pi.Metadata["purchase_type"] == purchaseTypeGiftCard {
		return giftCardPurchase(id, pi.ID, amount, string(pi.Currency), pi.Metadata, customer.Email), nil
	}
	return capture(id, eventType, pi.ID, amount, string(pi.Currency), pi.Metadata, customer, nil)
}

func giftCardPurchase(id, ref string, amount int64, currency string, md map[string]string, purchaserEmail string) *GiftCardPurchased {
	recipient := md["recipient_email"]
	if recipient == "" {
		recipient = purchaserEmail
	}
	return &GiftCardPurchased{
		ID:              id,
		PurchaseRef:     ref,
		Amount:          amount,
		Currency:        currency,
		PurchaserUserID: md["user_id"],
		PurchaserEmail:  purchaserEmail,
		RecipientEmail:  recipient,
		RecipientName:   md["recipient_name"],
		Message:         md["gift_message"],
	}
}

func capture(id, eventType, intentID string, amount int64, currency string, md map[string]string, customer Customer, billing *Billing) (*PaymentCaptured, error) {
	var missing []string
	for _, key := range []string{"tour_id", "session_id", "payment_type"} {
		if strings.TrimSpace(md[key]) == "" {
			missing = append(missing, key)
		}
	}
	if md["user_id"] == "" && customer.Email == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("payment %s: %w: %s", intentID, types.ErrMissingMetadata, strings.Join(missing, ", "))
	}

	paymentType, ok := types.ParsePaymentType(md["payment_type"])
	if !ok {
		return nil, fmt.Errorf("payment %s: %w: unknown payment_type %q", intentID, types.ErrValidation, md["payment_type"])
	}
	quantity := 1
	if q := md["quantity"]; q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("payment %s: %w: quantity %q", intentID, types.ErrValidation, q)
		}
		quantity = n
	}

	captured := &PaymentCaptured{
		ID:              id,
		Type:            eventType,
		IntentID:        intentID,
		Amount:          amount,
		Currency:        currency,
		UserID:          md["user_id"],
		TourID:          md["tour_id"],
		SessionID:       md["session_id"],
		PaymentType:     paymentType,
		Quantity:        quantity,
		TourTitle:       md["tour_title"],
		TourDestination: md["tour_destination"],
		SessionDate:     parseDate(md["session_date"]),
		SessionEndDate:  parseDate(md["session_end_date"]),
		GiftCardCode:    md["gift_card_code"],
		Customer:        customer,
	}
	if !billing.Empty() {
		captured.Billing = billing
	}
	if price, err := strconv.ParseFloat(md["session_price"], 64); err == nil && price > 0 {
		deposit, _ := strconv.ParseFloat(md["session_deposit"], 64)
		captured.Pricing = &Pricing{Price: price, Deposit: deposit}
	}
	return captured, nil
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
