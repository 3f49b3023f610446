package giftcards

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"tourledger/src/models"
	"tourledger/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxIssueAttempts = 5
	maxApplyAttempts = 5
)

type Store interface {
	Create(ctx context.Context, card *models.GiftCard) error
	FindByCode(ctx context.Context, code string) (*models.GiftCard, error)
	FindByPurchaseRef(ctx context.Context, ref string) (*models.GiftCard, error)
	CompareAndSwapBalance(ctx context.Context, id uuid.UUID, expected, newBalance int64, status types.GiftCardStatus) (bool, error)
	InsertTransaction(ctx context.Context, txn *models.GiftCardTransaction) error
}

type Ledger struct {
	store    Store
	validity time.Duration
	now      func() time.Time
}

// NewLedger returns a ledger issuing cards valid for validity. Zero means no expiry.
func NewLedger(store Store, validity time.Duration) *Ledger {
	return &Ledger{store: store, validity: validity, now: time.Now}
}

type IssueRequest struct {
	Amount          int64
	PurchaseRef     string
	PurchaserUserID string
	RecipientEmail  string
	RecipientName   string
	Message         string
}

// Issue creates a card. A repeated PurchaseRef returns the card issued for it
// with created false.
func (l *Ledger) Issue(ctx context.Context, req IssueRequest) (card *models.GiftCard, created bool, err error) {
	if req.Amount <= 0 {
		return nil, false, fmt.Errorf("%w: gift card amount must be positive", types.ErrValidation)
	}
	if req.PurchaseRef != "" {
		existing, err := l.store.FindByPurchaseRef(ctx, req.PurchaseRef)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return nil, false, err
		}
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, false, err
		}
		card = &models.GiftCard{
			Code:             code,
			Amount:           req.Amount,
			RemainingBalance: req.Amount,
			Status:           types.GIFT_CARD_ACTIVE,
			PurchaserUserID:  req.PurchaserUserID,
			RecipientEmail:   req.RecipientEmail,
			RecipientName:    req.RecipientName,
			Message:          req.Message,
		}
		if req.PurchaseRef != "" {
			ref := req.PurchaseRef
			card.PurchaseRef = &ref
		}
		if l.validity > 0 {
			expires := l.now().Add(l.validity)
			card.ExpiresAt = &expires
		}

		err = l.store.Create(ctx, card)
		if err == nil {
			return card, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, fmt.Errorf("%w: %w", types.ErrPersistence, err)
		}
		if req.PurchaseRef != "" {
			if existing, findErr := l.store.FindByPurchaseRef(ctx, req.PurchaseRef); findErr == nil {
				return existing, false, nil
			}
		}
		log.Printf("[GiftCards] code collision on attempt %d, regenerating\n", attempt)
	}
	return nil, false, fmt.Errorf("%w: could not generate a unique gift card code", types.ErrConflict)
}

// Validate returns the live card for code or the first failing outcome in
// order: format, not found, expired, already used, cancelled, inactive.
func (l *Ledger) Validate(ctx context.Context, code string) (*models.GiftCard, error) {
	code = NormalizeCode(code)
	if err := CheckFormat(code); err != nil {
		return nil, err
	}
	card, err := l.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch {
	case card.IsExpired(l.now()) || card.Status == types.GIFT_CARD_EXPIRED:
		return nil, types.ErrExpired
	case card.RemainingBalance <= 0 || card.Status == types.GIFT_CARD_USED:
		return nil, types.ErrAlreadyUsed
	case card.Status == types.GIFT_CARD_CANCELLED:
		return nil, types.ErrCancelled
	case card.Status != types.GIFT_CARD_ACTIVE:
		return nil, types.ErrInactive
	}
	return card, nil
}

// Lookup returns a card by code regardless of its status.
func (l *Ledger) Lookup(ctx context.Context, code string) (*models.GiftCard, error) {
	code = NormalizeCode(code)
	if err := CheckFormat(code); err != nil {
		return nil, err
	}
	return l.store.FindByCode(ctx, code)
}

type ApplyRequest struct {
	Code        string
	AmountToPay int64
	UserID      string
	BookingID   *uuid.UUID
}

type Redemption struct {
	Card             *models.GiftCard
	Discount         int64
	RemainingBalance int64
	Status           types.GiftCardStatus
	// AuditErr is set when the balance moved but the transaction row was not written.
	AuditErr error
}

// Apply redeems up to AmountToPay from the card. The balance moves through a
// compare-and-swap so concurrent redemptions never overdraw a card.
func (l *Ledger) Apply(ctx context.Context, req ApplyRequest) (*Redemption, error) {
	if req.AmountToPay <= 0 {
		return nil, fmt.Errorf("%w: amount to pay must be positive", types.ErrValidation)
	}

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		card, err := l.Validate(ctx, req.Code)
		if err != nil {
			return nil, err
		}

		discount := min(card.RemainingBalance, req.AmountToPay)
		balance := card.RemainingBalance - discount
		status := types.GIFT_CARD_ACTIVE
		if balance == 0 {
			status = types.GIFT_CARD_USED
		}

		swapped, err := l.store.CompareAndSwapBalance(ctx, card.ID, card.RemainingBalance, balance, status)
		if err != nil {
			return nil, err
		}
		if !swapped {
			log.Printf("[GiftCards] balance of %s changed concurrently, retrying\n", card.Code)
			continue
		}

		card.RemainingBalance = balance
		card.Status = status
		redemption := &Redemption{
			Card:             card,
			Discount:         discount,
			RemainingBalance: balance,
			Status:           status,
		}

		txn := &models.GiftCardTransaction{
			GiftCardID: card.ID,
			BookingID:  req.BookingID,
			AmountUsed: discount,
		}
		if req.UserID != "" {
			userID := req.UserID
			txn.UserID = &userID
		}
		if err := l.store.InsertTransaction(ctx, txn); err != nil {
			log.Printf("[GiftCards] redemption of %d on %s not recorded: %s\n", discount, card.Code, err.Error())
			redemption.AuditErr = err
		}
		return redemption, nil
	}
	return nil, fmt.Errorf("%w: gift card is being redeemed elsewhere", types.ErrConflict)
}
