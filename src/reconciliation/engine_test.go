package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	"tourledger/src/catalog"
	"tourledger/src/giftcards"
	"tourledger/src/models"
	"tourledger/src/types"
	"tourledger/src/webhooks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings struct {
	mu       sync.Mutex
	rows     []*models.Booking
	writes   int
	upsertFn func(b *models.Booking) error
}

func (f *fakeBookings) find(intentID string) *models.Booking {
	for _, b := range f.rows {
		if b.StripePaymentIntentID == intentID {
			return b
		}
	}
	return nil
}

func (f *fakeBookings) UpsertByPaymentIntent(_ context.Context, b *models.Booking) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertFn != nil {
		if err := f.upsertFn(b); err != nil {
			return false, err
		}
	}
	if existing := f.find(b.StripePaymentIntentID); existing != nil {
		switch existing.Status {
		case types.BOOKING_CANCELLED, types.BOOKING_REFUNDED, types.BOOKING_COMPLETED:
			return false, nil
		}
		if existing.SessionID != b.SessionID {
			return false, nil
		}
		existing.AmountPaid = b.AmountPaid
		existing.CustomerEmail = b.CustomerEmail
		existing.CustomerName = b.CustomerName
		existing.GiftCardCode = b.GiftCardCode
		existing.GiftCardDiscount = b.GiftCardDiscount
		*b = *existing
		f.writes++
		return true, nil
	}
	b.ID = uuid.New()
	copied := *b
	f.rows = append(f.rows, &copied)
	f.writes++
	return true, nil
}

func (f *fakeBookings) FindByPaymentIntent(_ context.Context, intentID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b := f.find(intentID); b != nil {
		copied := *b
		return &copied, nil
	}
	return nil, types.ErrNotFound
}

func (f *fakeBookings) FindOpenForBalance(_ context.Context, userID, tourID, sessionID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		b := f.rows[i]
		if b.UserID == userID && b.TourID == tourID && b.SessionID == sessionID &&
			(b.Status == types.BOOKING_PENDING || b.Status == types.BOOKING_DEPOSIT_PAID) {
			copied := *b
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

func (f *fakeBookings) PromoteToFullyPaid(_ context.Context, id uuid.UUID, intentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.rows {
		if b.ID == id && (b.Status == types.BOOKING_PENDING || b.Status == types.BOOKING_DEPOSIT_PAID) {
			b.Status = types.BOOKING_FULLY_PAID
			b.AmountPaid = b.TotalAmount
			b.StripePaymentIntentID = intentID
			f.writes++
			return true, nil
		}
	}
	return false, nil
}

type fakePricing struct {
	sessions map[string]*catalog.Session
	err      error
}

func (f *fakePricing) Session(_ context.Context, id string) (*catalog.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, types.ErrNotFound)
	}
	return s, nil
}

func (f *fakePricing) Tour(_ context.Context, id string) (*catalog.Tour, error) {
	return &catalog.Tour{ID: id, Title: "Patagonia Trek", Destination: "Chile"}, nil
}

type fakeIdentity struct {
	calls   int
	creates int
	err     error
	uids    map[string]string
}

func (f *fakeIdentity) EnsureUser(_ context.Context, email, _ string) (string, bool, error) {
	f.calls++
	if f.err != nil {
		return "", false, f.err
	}
	if uid, ok := f.uids[email]; ok {
		return uid, false, nil
	}
	f.creates++
	uid := "uid-" + email
	f.uids[email] = uid
	return uid, true, nil
}

func (f *fakeIdentity) SetupLink(_ context.Context, email string) (string, error) {
	return "https://auth.example.com/setup?email=" + email, nil
}

type fakeProfiles struct {
	err   error
	saved []*models.BillingProfile
}

func (f *fakeProfiles) UpsertBillingProfile(_ context.Context, p *models.BillingProfile) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, p)
	return nil
}

type fakeIssuer struct {
	byRef map[string]*models.GiftCard
}

func (f *fakeIssuer) Issue(_ context.Context, req giftcards.IssueRequest) (*models.GiftCard, bool, error) {
	if card, ok := f.byRef[req.PurchaseRef]; ok {
		return card, false, nil
	}
	card := &models.GiftCard{ID: uuid.New(), Code: "ABCDEFGH2345", Amount: req.Amount, RemainingBalance: req.Amount, RecipientEmail: req.RecipientEmail}
	f.byRef[req.PurchaseRef] = card
	return card, true, nil
}

type fakePublisher struct {
	err      error
	payloads []map[string]any
}

func (f *fakePublisher) Publish(_ context.Context, _ string, payload map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeMailer struct {
	sent []string
}

func (f *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	f.sent = append(f.sent, to+": "+subject)
	return nil
}

type fixture struct {
	engine    *Engine
	bookings  *fakeBookings
	pricing   *fakePricing
	identity  *fakeIdentity
	profiles  *fakeProfiles
	issuer    *fakeIssuer
	publisher *fakePublisher
	mailer    *fakeMailer
}

func newFixture() *fixture {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	f := &fixture{
		bookings: &fakeBookings{},
		pricing: &fakePricing{sessions: map[string]*catalog.Session{
			"s1": {ID: "s1", Price: 379, Deposit: 100, Start: start, End: start.AddDate(0, 0, 5)},
		}},
		identity:  &fakeIdentity{uids: map[string]string{}},
		profiles:  &fakeProfiles{},
		issuer:    &fakeIssuer{byRef: map[string]*models.GiftCard{}},
		publisher: &fakePublisher{},
		mailer:    &fakeMailer{},
	}
	f.engine = New(Deps{
		Bookings:  f.bookings,
		Pricing:   f.pricing,
		Identity:  f.identity,
		Profiles:  f.profiles,
		GiftCards: f.issuer,
		Publisher: f.publisher,
		Mailer:    f.mailer,
	}, Options{DepositDueDays: 7, BalanceLeadDays: 30, Topic: "BookingUpdates"})
	f.engine.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func depositEvent() *webhooks.PaymentCaptured {
	return &webhooks.PaymentCaptured{
		ID:          "evt_deposit",
		IntentID:    "pi_deposit",
		Amount:      10000,
		UserID:      "u1",
		TourID:      "t1",
		SessionID:   "s1",
		PaymentType: types.PAYMENT_DEPOSIT,
		Quantity:    1,
		TourTitle:   "Patagonia Trek",
	}
}

func TestDepositReplayIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.engine.HandleEvent(ctx, depositEvent()))
	require.NoError(t, f.engine.HandleEvent(ctx, depositEvent()))

	require.Len(t, f.bookings.rows, 1)
	b := f.bookings.rows[0]
	assert.Equal(t, types.BOOKING_DEPOSIT_PAID, b.Status)
	assert.Equal(t, int64(10000), b.AmountPaid)
	assert.Equal(t, int64(10000), b.DepositAmount)
	assert.Equal(t, int64(37900), b.TotalAmount)
	require.NotNil(t, b.BalanceDueDate)
	assert.Equal(t, time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), *b.BalanceDueDate)
}

func TestDepositThenBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.engine.HandleEvent(ctx, depositEvent()))

	balance := depositEvent()
	balance.ID = "evt_balance"
	balance.IntentID = "pi_balance"
	balance.Amount = 27900
	balance.PaymentType = types.PAYMENT_BALANCE
	require.NoError(t, f.engine.HandleEvent(ctx, balance))

	require.Len(t, f.bookings.rows, 1)
	b := f.bookings.rows[0]
	assert.Equal(t, types.BOOKING_FULLY_PAID, b.Status)
	assert.Equal(t, int64(37900), b.AmountPaid)
	assert.Equal(t, "t1", b.TourID)
	assert.Equal(t, "s1", b.SessionID)
	assert.Equal(t, "pi_balance", b.StripePaymentIntentID)

	writes := f.bookings.writes
	require.NoError(t, f.engine.HandleEvent(ctx, balance))
	assert.Equal(t, writes, f.bookings.writes, "a replayed balance must not write again")
}

func TestBalanceWithoutOpenBookingCreatesFullyPaid(t *testing.T) {
	f := newFixture()
	balance := depositEvent()
	balance.IntentID = "pi_orphan"
	balance.Amount = 27900
	balance.PaymentType = types.PAYMENT_BALANCE

	require.NoError(t, f.engine.HandleEvent(context.Background(), balance))
	require.Len(t, f.bookings.rows, 1)
	b := f.bookings.rows[0]
	assert.Equal(t, types.BOOKING_FULLY_PAID, b.Status)
	assert.Equal(t, b.TotalAmount, b.AmountPaid)
	assert.LessOrEqual(t, b.DepositAmount, b.TotalAmount)
}

func TestFullPaymentUsesCapturedAmount(t *testing.T) {
	f := newFixture()
	ev := depositEvent()
	ev.PaymentType = types.PAYMENT_FULL
	ev.Amount = 30000
	ev.GiftCardCode = "abcd-efgh-2345"

	require.NoError(t, f.engine.HandleEvent(context.Background(), ev))
	b := f.bookings.rows[0]
	assert.Equal(t, types.BOOKING_FULLY_PAID, b.Status)
	assert.Equal(t, int64(30000), b.TotalAmount)
	assert.Equal(t, int64(30000), b.DepositAmount)
	assert.Equal(t, "ABCDEFGH2345", b.GiftCardCode)
	assert.Equal(t, int64(7900), b.GiftCardDiscount)
}

func TestPersistenceFailureIsRetryable(t *testing.T) {
	f := newFixture()
	f.bookings.upsertFn = func(*models.Booking) error {
		return fmt.Errorf("upsert booking: %w", types.ErrPersistence)
	}

	err := f.engine.HandleEvent(context.Background(), depositEvent())
	assert.ErrorIs(t, err, types.ErrPersistence)
	assert.Empty(t, f.publisher.payloads)
}

func TestProfileFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.profiles.err = errors.New("profile table locked")
	f.publisher.err = errors.New("queue down")

	req := RequestFromCapture(depositEvent())
	req.Billing = &webhooks.Billing{Line1: "1 Main St", City: "Denver", Country: "US"}
	out, err := f.engine.CreateBooking(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, ActionUpserted, out.Action)
	assert.Len(t, out.Warnings, 2)
	assert.Len(t, f.bookings.rows, 1)
}

func TestAnonymousCheckoutProvisionsOnce(t *testing.T) {
	f := newFixture()
	ev := depositEvent()
	ev.UserID = ""
	ev.Customer = webhooks.Customer{Email: "guest@example.com", Name: "Guest"}

	require.NoError(t, f.engine.HandleEvent(context.Background(), ev))
	require.NoError(t, f.engine.HandleEvent(context.Background(), ev))

	assert.Equal(t, 1, f.identity.creates)
	assert.Equal(t, "uid-guest@example.com", f.bookings.rows[0].UserID)
	assert.Len(t, f.bookings.rows, 1)
	assert.Len(t, f.mailer.sent, 1)
}

func TestIdentityFailureIsRetryable(t *testing.T) {
	f := newFixture()
	f.identity.err = errors.New("identity provider unavailable")
	ev := depositEvent()
	ev.UserID = ""
	ev.Customer = webhooks.Customer{Email: "guest@example.com"}

	err := f.engine.HandleEvent(context.Background(), ev)
	assert.Error(t, err)
	assert.Empty(t, f.bookings.rows)
}

func TestCreateBookingMissingMetadata(t *testing.T) {
	f := newFixture()
	_, err := f.engine.CreateBooking(context.Background(), Request{UserID: "u1", TourID: "t1", PaymentType: types.PAYMENT_FULL})
	assert.ErrorIs(t, err, types.ErrMissingMetadata)
	assert.Equal(t, 400, types.HTTPStatus(err))
	assert.Empty(t, f.bookings.rows)
}

func TestManualPendingBooking(t *testing.T) {
	f := newFixture()
	out, err := f.engine.CreateBooking(context.Background(), Request{
		UserID:      "u1",
		TourID:      "t1",
		SessionID:   "s1",
		PaymentType: types.PAYMENT_DEPOSIT,
		Quantity:    2,
	})
	require.NoError(t, err)

	b := out.Booking
	assert.Contains(t, b.StripePaymentIntentID, "manual_")
	assert.Equal(t, types.BOOKING_PENDING, b.Status)
	assert.Equal(t, int64(75800), b.TotalAmount)
	assert.Equal(t, int64(20000), b.DepositAmount)
	require.NotNil(t, b.DepositDueDate)
	assert.Equal(t, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), *b.DepositDueDate)
	assert.Equal(t, "Patagonia Trek", b.TourTitle)
}

func TestCatalogOutageIsRetryable(t *testing.T) {
	f := newFixture()
	f.pricing.err = errors.New("catalog timeout")

	err := f.engine.HandleEvent(context.Background(), depositEvent())
	assert.Error(t, err)
	assert.Empty(t, f.bookings.rows)
}

func TestBalanceSettlesDuringCatalogOutage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.engine.HandleEvent(ctx, depositEvent()))

	f.pricing.err = errors.New("catalog timeout")
	balance := depositEvent()
	balance.ID = "evt_balance"
	balance.IntentID = "pi_balance"
	balance.Amount = 27900
	balance.PaymentType = types.PAYMENT_BALANCE
	require.NoError(t, f.engine.HandleEvent(ctx, balance))

	require.Len(t, f.bookings.rows, 1)
	assert.Equal(t, types.BOOKING_FULLY_PAID, f.bookings.rows[0].Status)
}

func TestReplayAfterSessionChangeKeepsNewSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.engine.HandleEvent(ctx, depositEvent()))

	moved := f.bookings.rows[0]
	moved.SessionID = "s2"
	moved.TotalAmount = 10000
	moved.Status = types.BOOKING_FULLY_PAID

	out, err := f.engine.CreateBooking(ctx, RequestFromCapture(depositEvent()))
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, out.Action)

	b := f.bookings.rows[0]
	assert.Equal(t, "s2", b.SessionID)
	assert.Equal(t, types.BOOKING_FULLY_PAID, b.Status)
	assert.Equal(t, int64(10000), b.TotalAmount)
}

func TestGiftCardPurchaseIssuesOnce(t *testing.T) {
	f := newFixture()
	ev := &webhooks.GiftCardPurchased{ID: "evt_gc", PurchaseRef: "pi_gc", Amount: 15000, RecipientEmail: "friend@example.com"}

	require.NoError(t, f.engine.HandleEvent(context.Background(), ev))
	require.NoError(t, f.engine.HandleEvent(context.Background(), ev))

	assert.Len(t, f.issuer.byRef, 1)
	assert.Len(t, f.mailer.sent, 1)
}

func TestUnknownEventIsNoop(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.engine.HandleEvent(context.Background(), &webhooks.Unknown{ID: "evt_x", Type: "customer.created"}))
	assert.Empty(t, f.bookings.rows)
}
