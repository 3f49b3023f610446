package scopes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func WithID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithStatus(statuses ...any) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 1 {
			return db.Where("status = ?", statuses[0])
		}
		return db.Where("status IN (?)", statuses)
	}
}

// DueBetween filters on a due-date column; column must be a trusted identifier.
func DueBetween(column string, from, to time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" BETWEEN ? AND ?", from, to)
	}
}
