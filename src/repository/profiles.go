package repository

import (
	"context"
	"tourledger/src/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) UpsertBillingProfile(ctx context.Context, p *models.BillingProfile) error {
	if err := r.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "line1", "line2", "city", "state", "postal_code", "country", "tax_id", "updated_at",
			}),
		}).
		Create(p).
		Error; err != nil {
		return persistErr("upsert billing profile", err)
	}
	return nil
}
