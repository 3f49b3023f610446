package repository

import (
	"context"
	"time"
	"tourledger/src/models"
	"tourledger/src/models/scopes"
	"tourledger/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns a replayed payment may refresh. Session, pricing and status belong
// to the session change and balance flows once the row exists.
var upsertColumns = []string{
	"amount_paid",
	"currency",
	"customer_email",
	"customer_name",
	"gift_card_code",
	"gift_card_discount",
	"updated_at",
}

// Statuses an upsert replay must never overwrite.
var terminalStatuses = []string{
	string(types.BOOKING_COMPLETED),
	string(types.BOOKING_CANCELLED),
	string(types.BOOKING_REFUNDED),
}

type BookingRepo struct {
	db *gorm.DB
}

func NewBookingRepo(db *gorm.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// UpsertByPaymentIntent inserts the booking or updates the row holding the same
// payment intent id. It reports false when the existing row is in a terminal
// status or was moved to another session, and was left untouched.
func (r *BookingRepo) UpsertByPaymentIntent(ctx context.Context, b *models.Booking) (bool, error) {
	result := r.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_payment_intent_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: `"bookings"."status" NOT IN ?`, Vars: []any{terminalStatuses}},
				clause.Expr{SQL: `"bookings"."session_id" = excluded.session_id`},
			}},
		}).
		Create(b)
	if result.Error != nil {
		return false, persistErr("upsert booking", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *BookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.
		WithContext(ctx).
		Scopes(scopes.WithID(id)).
		First(&booking).
		Error; err != nil {
		return nil, lookupErr("find booking", err)
	}
	return &booking, nil
}

func (r *BookingRepo) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.
		WithContext(ctx).
		Where("stripe_payment_intent_id = ?", intentID).
		First(&booking).
		Error; err != nil {
		return nil, lookupErr("find booking by payment intent", err)
	}
	return &booking, nil
}

// FindOpenForBalance returns the most recent booking still awaiting its balance
// for the given user, tour and session.
func (r *BookingRepo) FindOpenForBalance(ctx context.Context, userID, tourID, sessionID string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.
		WithContext(ctx).
		Where("user_id = ? AND tour_id = ? AND session_id = ?", userID, tourID, sessionID).
		Scopes(scopes.WithStatus(types.BOOKING_PENDING, types.BOOKING_DEPOSIT_PAID)).
		Order("created_at desc").
		First(&booking).
		Error; err != nil {
		return nil, lookupErr("find open booking", err)
	}
	return &booking, nil
}

// PromoteToFullyPaid marks an open booking as fully paid and attaches the
// balance payment intent. It reports false when the booking was no longer open.
func (r *BookingRepo) PromoteToFullyPaid(ctx context.Context, id uuid.UUID, intentID string) (bool, error) {
	result := r.db.
		WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(id), scopes.WithStatus(types.BOOKING_PENDING, types.BOOKING_DEPOSIT_PAID)).
		Updates(map[string]any{
			"status":                   types.BOOKING_FULLY_PAID,
			"amount_paid":              gorm.Expr("total_amount"),
			"stripe_payment_intent_id": intentID,
		})
	if result.Error != nil {
		return false, persistErr("promote booking", result.Error)
	}
	return result.RowsAffected > 0, nil
}

type SessionChange struct {
	SessionID       string
	TourID          string
	TourTitle       string
	TourDestination string
	SessionDate     time.Time
	SessionEndDate  time.Time
	BalanceDueDate  time.Time
	TotalAmount     int64
	DepositAmount   int64
	AmountPaid      int64
	Status          types.BookingStatus
}

// ApplySessionChange writes a re-priced booking, guarded on the status and
// total the change was computed from.
func (r *BookingRepo) ApplySessionChange(ctx context.Context, prev *models.Booking, change SessionChange) (bool, error) {
	updates := map[string]any{
		"session_id":     change.SessionID,
		"tour_id":        change.TourID,
		"total_amount":   change.TotalAmount,
		"deposit_amount": change.DepositAmount,
		"amount_paid":    change.AmountPaid,
		"status":         change.Status,
	}
	if !change.SessionDate.IsZero() {
		updates["session_date"] = change.SessionDate
		updates["balance_due_date"] = change.BalanceDueDate
	}
	if !change.SessionEndDate.IsZero() {
		updates["session_end_date"] = change.SessionEndDate
	}
	if change.TourTitle != "" {
		updates["tour_title"] = change.TourTitle
		updates["tour_destination"] = change.TourDestination
	}
	result := r.db.
		WithContext(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(prev.ID), scopes.WithStatus(prev.Status)).
		Where("total_amount = ?", prev.TotalAmount).
		Updates(updates)
	if result.Error != nil {
		return false, persistErr("apply session change", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListDue returns bookings in status whose due-date column falls in [from, to].
func (r *BookingRepo) ListDue(ctx context.Context, status types.BookingStatus, column string, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := r.db.
		WithContext(ctx).
		Scopes(scopes.WithStatus(status), scopes.DueBetween(column, from, to)).
		Order(column + " asc").
		Find(&bookings).
		Error; err != nil {
		return nil, persistErr("list due bookings", err)
	}
	return bookings, nil
}
