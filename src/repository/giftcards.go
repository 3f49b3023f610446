package repository

import (
	"context"
	"fmt"
	"tourledger/src/models"
	"tourledger/src/models/scopes"
	"tourledger/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GiftCardRepo struct {
	db *gorm.DB
}

func NewGiftCardRepo(db *gorm.DB) *GiftCardRepo {
	return &GiftCardRepo{db: db}
}

// Create returns an error wrapping gorm.ErrDuplicatedKey on a code or purchase
// reference collision.
func (r *GiftCardRepo) Create(ctx context.Context, card *models.GiftCard) error {
	if err := r.db.WithContext(ctx).Create(card).Error; err != nil {
		return fmt.Errorf("create gift card: %w", err)
	}
	return nil
}

func (r *GiftCardRepo) FindByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.
		WithContext(ctx).
		Where("code = ?", code).
		First(&card).
		Error; err != nil {
		return nil, lookupErr("find gift card", err)
	}
	return &card, nil
}

func (r *GiftCardRepo) FindByPurchaseRef(ctx context.Context, ref string) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.
		WithContext(ctx).
		Where("purchase_ref = ?", ref).
		First(&card).
		Error; err != nil {
		return nil, lookupErr("find gift card by purchase", err)
	}
	return &card, nil
}

// CompareAndSwapBalance moves an active card from expected to newBalance. It
// reports false when another redemption changed the card first.
func (r *GiftCardRepo) CompareAndSwapBalance(ctx context.Context, id uuid.UUID, expected, newBalance int64, status types.GiftCardStatus) (bool, error) {
	result := r.db.
		WithContext(ctx).
		Model(&models.GiftCard{}).
		Scopes(scopes.WithID(id), scopes.WithStatus(types.GIFT_CARD_ACTIVE)).
		Where("remaining_balance = ?", expected).
		Updates(map[string]any{
			"remaining_balance": newBalance,
			"status":            status,
		})
	if result.Error != nil {
		return false, persistErr("update gift card balance", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GiftCardRepo) InsertTransaction(ctx context.Context, txn *models.GiftCardTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return persistErr("insert gift card transaction", err)
	}
	return nil
}

func (r *GiftCardRepo) ListTransactions(ctx context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error) {
	var txns []models.GiftCardTransaction
	if err := r.db.
		WithContext(ctx).
		Where("gift_card_id = ?", cardID).
		Order("created_at asc").
		Find(&txns).
		Error; err != nil {
		return nil, persistErr("list gift card transactions", err)
	}
	return txns, nil
}
