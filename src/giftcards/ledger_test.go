package giftcards

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"tourledger/src/models"
	"tourledger/src/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memStore struct {
	mu        sync.Mutex
	cards     map[string]*models.GiftCard
	txns      []models.GiftCardTransaction
	dupes     int
	txnErr    error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{cards: map[string]*models.GiftCard{}}
}

func (s *memStore) add(code string, balance int64, status types.GiftCardStatus) *models.GiftCard {
	card := &models.GiftCard{ID: uuid.New(), Code: code, Amount: balance, RemainingBalance: balance, Status: status}
	s.cards[code] = card
	return card
}

func (s *memStore) Create(_ context.Context, card *models.GiftCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if s.dupes > 0 {
		s.dupes--
		return gorm.ErrDuplicatedKey
	}
	if _, ok := s.cards[card.Code]; ok {
		return gorm.ErrDuplicatedKey
	}
	card.ID = uuid.New()
	copied := *card
	s.cards[card.Code] = &copied
	return nil
}

func (s *memStore) FindByCode(_ context.Context, code string) (*models.GiftCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[code]
	if !ok {
		return nil, types.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (s *memStore) FindByPurchaseRef(_ context.Context, ref string) (*models.GiftCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range s.cards {
		if card.PurchaseRef != nil && *card.PurchaseRef == ref {
			copied := *card
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *memStore) CompareAndSwapBalance(_ context.Context, id uuid.UUID, expected, newBalance int64, status types.GiftCardStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, card := range s.cards {
		if card.ID != id {
			continue
		}
		if card.RemainingBalance != expected || card.Status != types.GIFT_CARD_ACTIVE {
			return false, nil
		}
		card.RemainingBalance = newBalance
		card.Status = status
		return true, nil
	}
	return false, nil
}

func (s *memStore) InsertTransaction(_ context.Context, txn *models.GiftCardTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txnErr != nil {
		return s.txnErr
	}
	s.txns = append(s.txns, *txn)
	return nil
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for range 200 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected glyph %q", r)
		}
		assert.NoError(t, CheckFormat(code))
		seen[code] = true
	}
	assert.Len(t, seen, 200)
	assert.NotContains(t, CodeAlphabet, "0")
	assert.NotContains(t, CodeAlphabet, "O")
	assert.NotContains(t, CodeAlphabet, "1")
	assert.NotContains(t, CodeAlphabet, "I")
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABCD2345EFGH", NormalizeCode("abcd-2345 efgh"))
}

func TestApplyExactExhaustion(t *testing.T) {
	store := newMemStore()
	store.add("ABCDEFGH2345", 5000, types.GIFT_CARD_ACTIVE)
	ledger := NewLedger(store, 0)

	bookingID := uuid.New()
	r, err := ledger.Apply(context.Background(), ApplyRequest{Code: "abcd-efgh-2345", AmountToPay: 5000, UserID: "u1", BookingID: &bookingID})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), r.Discount)
	assert.Equal(t, int64(0), r.RemainingBalance)
	assert.Equal(t, types.GIFT_CARD_USED, r.Status)
	require.Len(t, store.txns, 1)
	assert.Equal(t, int64(5000), store.txns[0].AmountUsed)
	assert.Equal(t, bookingID, *store.txns[0].BookingID)
	assert.Equal(t, types.GIFT_CARD_USED, store.cards["ABCDEFGH2345"].Status)
}

func TestApplyPartialUse(t *testing.T) {
	store := newMemStore()
	store.add("ABCDEFGH2345", 7000, types.GIFT_CARD_ACTIVE)
	ledger := NewLedger(store, 0)

	r, err := ledger.Apply(context.Background(), ApplyRequest{Code: "ABCDEFGH2345", AmountToPay: 3000})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), r.Discount)
	assert.Equal(t, int64(4000), r.RemainingBalance)
	assert.Equal(t, types.GIFT_CARD_ACTIVE, r.Status)
	assert.Nil(t, store.txns[0].UserID)
}

func TestApplyAmountAboveBalance(t *testing.T) {
	store := newMemStore()
	store.add("ABCDEFGH2345", 2500, types.GIFT_CARD_ACTIVE)
	ledger := NewLedger(store, 0)

	r, err := ledger.Apply(context.Background(), ApplyRequest{Code: "ABCDEFGH2345", AmountToPay: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), r.Discount)
	assert.Equal(t, types.GIFT_CARD_USED, r.Status)
}

func TestApplyConcurrentRedemption(t *testing.T) {
	store := newMemStore()
	store.add("ABCDEFGH2345", 1000, types.GIFT_CARD_ACTIVE)
	ledger := NewLedger(store, 0)

	var wg sync.WaitGroup
	results := make([]*Redemption, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.Apply(context.Background(), ApplyRequest{Code: "ABCDEFGH2345", AmountToPay: 1000})
		}(i)
	}
	wg.Wait()

	var total int64
	var rejected int
	for i := range 2 {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], types.ErrAlreadyUsed)
			rejected++
			continue
		}
		total += results[i].Discount
	}
	assert.Equal(t, int64(1000), total)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(0), store.cards["ABCDEFGH2345"].RemainingBalance)
	assert.Len(t, store.txns, 1)
}

func TestApplyAuditFailureKeepsBalance(t *testing.T) {
	store := newMemStore()
	store.add("ABCDEFGH2345", 4000, types.GIFT_CARD_ACTIVE)
	store.txnErr = errors.New("insert failed")
	ledger := NewLedger(store, 0)

	r, err := ledger.Apply(context.Background(), ApplyRequest{Code: "ABCDEFGH2345", AmountToPay: 1000})
	require.NoError(t, err)
	assert.Error(t, r.AuditErr)
	assert.Equal(t, int64(3000), store.cards["ABCDEFGH2345"].RemainingBalance)
}

func TestValidateOutcomes(t *testing.T) {
	store := newMemStore()
	past := time.Now().Add(-time.Hour)
	expired := store.add("EXPRED234567", 1000, types.GIFT_CARD_USED)
	expired.ExpiresAt = &past
	store.add("USEDUP234567", 0, types.GIFT_CARD_ACTIVE)
	store.add("CANCEL234567", 1000, types.GIFT_CARD_CANCELLED)
	store.add("WEIRD2345678", 1000, types.GiftCardStatus("suspended"))
	store.add("GOODCARD2345", 1000, types.GIFT_CARD_ACTIVE)
	ledger := NewLedger(store, 0)

	tests := []struct {
		code string
		err  error
	}{
		{"SHORT", types.ErrValidation},
		{"ABC!EFGH2345", types.ErrValidation},
		{"MISSING23456", types.ErrNotFound},
		{"EXPRED234567", types.ErrExpired},
		{"USEDUP234567", types.ErrAlreadyUsed},
		{"CANCEL234567", types.ErrCancelled},
		{"WEIRD2345678", types.ErrInactive},
	}
	for _, tt := range tests {
		_, err := ledger.Validate(context.Background(), tt.code)
		assert.ErrorIs(t, err, tt.err, tt.code)
	}

	card, err := ledger.Validate(context.Background(), "goodcard2345")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), card.RemainingBalance)
}

func TestIssueIdempotentPerPurchase(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, 365*24*time.Hour)

	req := IssueRequest{Amount: 15000, PurchaseRef: "pi_gift", RecipientEmail: "friend@example.com"}
	first, created, err := ledger.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first.ExpiresAt)

	second, created, err := ledger.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Code, second.Code)
	assert.Len(t, store.cards, 1)
}

func TestIssueRetriesOnCollision(t *testing.T) {
	store := newMemStore()
	store.dupes = 2
	ledger := NewLedger(store, 0)

	card, created, err := ledger.Issue(context.Background(), IssueRequest{Amount: 5000})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(5000), card.RemainingBalance)

	store.dupes = maxIssueAttempts
	_, _, err = ledger.Issue(context.Background(), IssueRequest{Amount: 5000})
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestOriginalAmount(t *testing.T) {
	assert.Equal(t, int64(20000), OriginalAmount(379, 100, 2, types.PAYMENT_DEPOSIT))
	assert.Equal(t, int64(55800), OriginalAmount(379, 100, 2, types.PAYMENT_BALANCE))
	assert.Equal(t, int64(75800), OriginalAmount(379, 100, 2, types.PAYMENT_FULL))
	assert.Equal(t, int64(5800), DiscountFor(75800, 70000))
	assert.Equal(t, int64(0), DiscountFor(100, 200))
}
