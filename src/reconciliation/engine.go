// Package reconciliation turns captured payments and manual booking requests
// into booking rows that are safe under duplicate delivery.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"tourledger/src/catalog"
	"tourledger/src/giftcards"
	"tourledger/src/models"
	"tourledger/src/types"
	"tourledger/src/webhooks"

	"github.com/google/uuid"
)

const EventBookingReconciled = "booking.reconciled"

type Action string

const (
	ActionUpserted Action = "upserted"
	ActionPromoted Action = "promoted"
	ActionReplayed Action = "replayed"
	ActionSkipped  Action = "skipped"
)

type Request struct {
	// IntentID is the idempotency key. Empty means a manual booking.
	IntentID    string
	UserID      string
	TourID      string
	SessionID   string
	PaymentType types.PaymentType
	Quantity    int
	AmountPaid  int64

	TourTitle       string
	TourDestination string
	SessionDate     *time.Time
	SessionEndDate  *time.Time
	Pricing         *webhooks.Pricing

	GiftCardCode string
	Customer     webhooks.Customer
	Billing      *webhooks.Billing
}

// Outcome describes a booking write. Warnings hold best-effort side effects
// that failed without affecting the booking.
type Outcome struct {
	Booking     *models.Booking
	Action      Action
	UserCreated bool
	Warnings    []error
}

func (o *Outcome) warn(err error) {
	o.Warnings = append(o.Warnings, err)
}

type Engine struct {
	bookings  BookingStore
	pricing   PricingSource
	identity  IdentityProvider
	profiles  ProfileStore
	giftCards GiftCardIssuer
	publisher Publisher
	mailer    Mailer
	opts      Options
	now       func() time.Time
}

func New(deps Deps, opts Options) *Engine {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &Engine{
		bookings:  deps.Bookings,
		pricing:   deps.Pricing,
		identity:  deps.Identity,
		profiles:  deps.Profiles,
		giftCards: deps.GiftCards,
		publisher: deps.Publisher,
		mailer:    deps.Mailer,
		opts:      opts,
		now:       time.Now,
	}
}

// HandleEvent applies a verified gateway event. A returned error means the
// delivery should be retried.
func (e *Engine) HandleEvent(ctx context.Context, event webhooks.Event) error {
	switch ev := event.(type) {
	case *webhooks.PaymentCaptured:
		out, err := e.CreateBooking(ctx, RequestFromCapture(ev))
		if err != nil {
			return err
		}
		logOutcome(ev.ID, out)
		return nil
	case *webhooks.GiftCardPurchased:
		return e.issueGiftCard(ctx, ev)
	case *webhooks.PaymentFailed:
		log.Printf("[Reconcile] payment %s failed for user %s: %s\n", ev.IntentID, ev.UserID, ev.Reason)
		return nil
	case *webhooks.Unknown:
		log.Printf("[Reconcile] ignoring event %s of type %s\n", ev.ID, ev.Type)
		return nil
	}
	return fmt.Errorf("unhandled event %T", event)
}

func RequestFromCapture(ev *webhooks.PaymentCaptured) Request {
	return Request{
		IntentID:        ev.IntentID,
		UserID:          ev.UserID,
		TourID:          ev.TourID,
		SessionID:       ev.SessionID,
		PaymentType:     ev.PaymentType,
		Quantity:        ev.Quantity,
		AmountPaid:      ev.Amount,
		TourTitle:       ev.TourTitle,
		TourDestination: ev.TourDestination,
		SessionDate:     ev.SessionDate,
		SessionEndDate:  ev.SessionEndDate,
		Pricing:         ev.Pricing,
		GiftCardCode:    ev.GiftCardCode,
		Customer:        ev.Customer,
		Billing:         ev.Billing,
	}
}

func logOutcome(ref string, out *Outcome) {
	log.Printf("[Reconcile] %s: booking %s %s (%s)\n", ref, out.Booking.ID, out.Action, out.Booking.Status)
	for _, w := range out.Warnings {
		log.Printf("[Reconcile] %s: %s\n", ref, w.Error())
	}
}

func validate(req *Request) error {
	var missing []string
	if req.TourID == "" {
		missing = append(missing, "tour_id")
	}
	if req.SessionID == "" {
		missing = append(missing, "session_id")
	}
	if req.PaymentType == "" {
		missing = append(missing, "payment_type")
	}
	if req.UserID == "" && req.Customer.Email == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", types.ErrMissingMetadata, strings.Join(missing, ", "))
	}
	if _, ok := types.ParsePaymentType(string(req.PaymentType)); !ok {
		return fmt.Errorf("%w: unknown payment_type %q", types.ErrValidation, req.PaymentType)
	}
	if req.AmountPaid < 0 {
		return fmt.Errorf("%w: amount_paid must not be negative", types.ErrValidation)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be at least 1", types.ErrValidation)
	}
	return nil
}

// CreateBooking writes the booking for req. Manual requests without an intent
// id get a synthetic one.
func (e *Engine) CreateBooking(ctx context.Context, req Request) (*Outcome, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}
	if req.IntentID == "" {
		req.IntentID = "manual_" + uuid.NewString()
	}
	out := &Outcome{}

	if req.UserID == "" {
		uid, created, err := e.identity.EnsureUser(ctx, req.Customer.Email, req.Customer.Name)
		if err != nil {
			return nil, fmt.Errorf("provision identity for %s: %w", req.IntentID, err)
		}
		req.UserID = uid
		out.UserCreated = created
		if created {
			if err := e.sendWelcome(ctx, req.Customer); err != nil {
				out.warn(fmt.Errorf("welcome mail: %w", err))
			}
		}
	}

	if req.PaymentType == types.PAYMENT_BALANCE {
		booking, action, err := e.settleBalance(ctx, &req)
		if err != nil {
			return nil, err
		}
		if booking != nil {
			out.Booking = booking
			out.Action = action
			e.afterWrite(ctx, &req, out)
			return out, nil
		}
		log.Printf("[Reconcile] balance %s has no open booking for %s/%s/%s, recording it as fully paid\n", req.IntentID, req.UserID, req.TourID, req.SessionID)
	}

	quote, err := e.quote(ctx, &req, out)
	if err != nil {
		return nil, err
	}

	booking := e.buildBooking(&req, quote)
	applied, err := e.bookings.UpsertByPaymentIntent(ctx, booking)
	if err != nil {
		return nil, err
	}
	out.Booking = booking
	out.Action = ActionUpserted
	if !applied {
		out.Action = ActionSkipped
		if existing, err := e.bookings.FindByPaymentIntent(ctx, req.IntentID); err == nil {
			out.Booking = existing
		}
		return out, nil
	}
	e.afterWrite(ctx, &req, out)
	return out, nil
}

// settleBalance promotes the open deposit booking for the same user, tour and
// session. A nil booking means there was nothing to promote.
func (e *Engine) settleBalance(ctx context.Context, req *Request) (*models.Booking, Action, error) {
	if existing, err := e.bookings.FindByPaymentIntent(ctx, req.IntentID); err == nil {
		return existing, ActionReplayed, nil
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, "", err
	}

	open, err := e.bookings.FindOpenForBalance(ctx, req.UserID, req.TourID, req.SessionID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	promoted, err := e.bookings.PromoteToFullyPaid(ctx, open.ID, req.IntentID)
	if err != nil {
		return nil, "", err
	}
	booking, err := e.bookings.FindByPaymentIntent(ctx, req.IntentID)
	if err == nil {
		if promoted {
			return booking, ActionPromoted, nil
		}
		return booking, ActionReplayed, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, "", err
	}
	if promoted {
		return nil, "", fmt.Errorf("%w: promoted booking %s not readable", types.ErrPersistence, open.ID)
	}
	return nil, "", nil
}

type priceQuote struct {
	total   int64
	deposit int64
	priced  bool
	price   float64
	depRate float64
	start   *time.Time
}

// quote resolves session pricing, preferring inline values over the catalog.
// A session missing from the catalog falls back to the captured amount.
func (e *Engine) quote(ctx context.Context, req *Request, out *Outcome) (*priceQuote, error) {
	q := &priceQuote{start: req.SessionDate}
	qty := int64(req.Quantity)

	if req.Pricing != nil {
		q.price, q.depRate, q.priced = req.Pricing.Price, req.Pricing.Deposit, true
	} else if e.pricing != nil {
		session, err := e.pricing.Session(ctx, req.SessionID)
		switch {
		case errors.Is(err, types.ErrNotFound):
			out.warn(fmt.Errorf("pricing unavailable, using captured amount: %w", err))
		case err != nil:
			return nil, fmt.Errorf("session pricing %s: %w", req.SessionID, err)
		default:
			q.price, q.depRate, q.priced = session.Price, session.Deposit, true
			if q.start == nil && !session.Start.IsZero() {
				start := session.Start
				q.start = &start
				req.SessionDate = &start
			}
			if req.SessionEndDate == nil && !session.End.IsZero() {
				end := session.End
				req.SessionEndDate = &end
			}
		}
	}
	if q.priced {
		q.total = catalog.Cents(q.price) * qty
		q.deposit = catalog.Cents(q.depRate) * qty
	}

	if req.TourTitle == "" && e.pricing != nil {
		if tour, err := e.pricing.Tour(ctx, req.TourID); err == nil {
			req.TourTitle = tour.Title
			req.TourDestination = tour.Destination
		} else {
			out.warn(fmt.Errorf("tour details: %w", err))
		}
	}
	return q, nil
}

func (e *Engine) buildBooking(req *Request, q *priceQuote) *models.Booking {
	amount := req.AmountPaid
	b := &models.Booking{
		UserID:                req.UserID,
		TourID:                req.TourID,
		SessionID:             req.SessionID,
		Quantity:              req.Quantity,
		Currency:              e.opts.Currency,
		StripePaymentIntentID: req.IntentID,
		TourTitle:             req.TourTitle,
		TourDestination:       req.TourDestination,
		SessionDate:           req.SessionDate,
		SessionEndDate:        req.SessionEndDate,
		CustomerEmail:         req.Customer.Email,
		CustomerName:          req.Customer.Name,
	}

	switch req.PaymentType {
	case types.PAYMENT_DEPOSIT:
		b.TotalAmount = q.total
		if !q.priced {
			b.TotalAmount = amount
		}
		b.DepositAmount = min(amount, b.TotalAmount)
		b.AmountPaid = amount
		b.Status = types.BOOKING_DEPOSIT_PAID
		if amount == 0 {
			b.DepositAmount = min(q.deposit, b.TotalAmount)
			b.Status = types.BOOKING_PENDING
			due := e.now().AddDate(0, 0, e.opts.DepositDueDays)
			b.DepositDueDate = &due
		}
		if q.start != nil {
			due := q.start.AddDate(0, 0, -e.opts.BalanceLeadDays)
			b.BalanceDueDate = &due
		}
	case types.PAYMENT_BALANCE:
		b.TotalAmount = q.total
		if !q.priced {
			b.TotalAmount = amount
		}
		b.DepositAmount = min(q.deposit, b.TotalAmount)
		b.AmountPaid = b.TotalAmount
		b.Status = types.BOOKING_FULLY_PAID
	default:
		b.TotalAmount = amount
		b.DepositAmount = amount
		b.AmountPaid = amount
		b.Status = types.BOOKING_FULLY_PAID
	}

	if req.GiftCardCode != "" {
		b.GiftCardCode = giftcards.NormalizeCode(req.GiftCardCode)
		if q.priced {
			original := giftcards.OriginalAmount(q.price, q.depRate, req.Quantity, req.PaymentType)
			b.GiftCardDiscount = giftcards.DiscountFor(original, amount)
		}
	}
	return b
}

// afterWrite runs the best-effort side effects of a successful booking write.
func (e *Engine) afterWrite(ctx context.Context, req *Request, out *Outcome) {
	if e.profiles != nil && !req.Billing.Empty() {
		profile := &models.BillingProfile{
			UserID:     req.UserID,
			Name:       req.Customer.Name,
			Email:      req.Customer.Email,
			Line1:      req.Billing.Line1,
			Line2:      req.Billing.Line2,
			City:       req.Billing.City,
			State:      req.Billing.State,
			PostalCode: req.Billing.PostalCode,
			Country:    req.Billing.Country,
			TaxID:      req.Billing.TaxID,
		}
		if err := e.profiles.UpsertBillingProfile(ctx, profile); err != nil {
			out.warn(fmt.Errorf("billing profile: %w", err))
		}
	}

	if e.publisher != nil {
		b := out.Booking
		payload := map[string]any{
			"type":              EventBookingReconciled,
			"action":            string(out.Action),
			"booking_id":        b.ID.String(),
			"user_id":           b.UserID,
			"tour_id":           b.TourID,
			"session_id":        b.SessionID,
			"status":            string(b.Status),
			"total_amount":      b.TotalAmount,
			"amount_paid":       b.AmountPaid,
			"payment_intent_id": req.IntentID,
		}
		if err := e.publisher.Publish(ctx, e.opts.Topic, payload); err != nil {
			out.warn(fmt.Errorf("publish %s: %w", EventBookingReconciled, err))
		}
	}
}

func (e *Engine) issueGiftCard(ctx context.Context, ev *webhooks.GiftCardPurchased) error {
	if e.giftCards == nil {
		return errors.New("gift card ledger not configured")
	}
	card, created, err := e.giftCards.Issue(ctx, giftcards.IssueRequest{
		Amount:          ev.Amount,
		PurchaseRef:     ev.PurchaseRef,
		PurchaserUserID: ev.PurchaserUserID,
		RecipientEmail:  ev.RecipientEmail,
		RecipientName:   ev.RecipientName,
		Message:         ev.Message,
	})
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			log.Printf("[Reconcile] %s: gift card purchase rejected: %s\n", ev.ID, err.Error())
			return nil
		}
		return err
	}
	if !created {
		log.Printf("[Reconcile] %s: gift card for %s already issued\n", ev.ID, ev.PurchaseRef)
		return nil
	}
	log.Printf("[Reconcile] %s: issued gift card %s for %s\n", ev.ID, card.ID, ev.PurchaseRef)
	if e.mailer != nil && card.RecipientEmail != "" {
		subject, body := giftCardMessage(card)
		if err := e.mailer.Send(ctx, card.RecipientEmail, subject, body); err != nil {
			log.Printf("[Reconcile] %s: gift card mail failed: %s\n", ev.ID, err.Error())
		}
	}
	return nil
}

func (e *Engine) sendWelcome(ctx context.Context, customer webhooks.Customer) error {
	if e.mailer == nil {
		return nil
	}
	link, err := e.identity.SetupLink(ctx, customer.Email)
	if err != nil {
		return err
	}
	subject, body := welcomeMessage(customer.Name, link)
	return e.mailer.Send(ctx, customer.Email, subject, body)
}
