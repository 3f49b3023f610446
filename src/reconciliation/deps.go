package reconciliation

import (
	"context"
	"tourledger/src/catalog"
	"tourledger/src/giftcards"
	"tourledger/src/models"

	"github.com/google/uuid"
)

type BookingStore interface {
	UpsertByPaymentIntent(ctx context.Context, b *models.Booking) (bool, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Booking, error)
	FindOpenForBalance(ctx context.Context, userID, tourID, sessionID string) (*models.Booking, error)
	PromoteToFullyPaid(ctx context.Context, id uuid.UUID, intentID string) (bool, error)
}

type PricingSource interface {
	Session(ctx context.Context, id string) (*catalog.Session, error)
	Tour(ctx context.Context, id string) (*catalog.Tour, error)
}

type IdentityProvider interface {
	EnsureUser(ctx context.Context, email, displayName string) (string, bool, error)
	SetupLink(ctx context.Context, email string) (string, error)
}

type ProfileStore interface {
	UpsertBillingProfile(ctx context.Context, p *models.BillingProfile) error
}

type GiftCardIssuer interface {
	Issue(ctx context.Context, req giftcards.IssueRequest) (*models.GiftCard, bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload map[string]any) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Deps are the engine collaborators. Profiles, GiftCards, Publisher and Mailer may be nil.
type Deps struct {
	Bookings  BookingStore
	Pricing   PricingSource
	Identity  IdentityProvider
	Profiles  ProfileStore
	GiftCards GiftCardIssuer
	Publisher Publisher
	Mailer    Mailer
}

type Options struct {
	Currency        string
	DepositDueDays  int
	BalanceLeadDays int
	Topic           string
}
