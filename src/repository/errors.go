// Package repository holds the gorm-backed stores. Every mutation is a single
// statement: an upsert on a unique key or an update guarded by a precondition.
package repository

import (
	"errors"
	"fmt"
	"tourledger/src/types"

	"gorm.io/gorm"
)

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrPersistence, err)
}

func lookupErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	return persistErr(op, err)
}
