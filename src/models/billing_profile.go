package models

import (
	"tourledger/src/types"

	"github.com/google/uuid"
)

type BillingProfile struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	UserID     string `gorm:"uniqueIndex;not null" json:"user_id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	TaxID      string `json:"tax_id,omitempty"`

	types.Timestamps
}
