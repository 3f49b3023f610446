// Package sessions moves an existing booking to another session and re-prices it.
package sessions

import (
	"context"
	"fmt"
	"log"
	"time"
	"tourledger/src/catalog"
	"tourledger/src/models"
	"tourledger/src/repository"
	"tourledger/src/types"

	"github.com/google/uuid"
)

type BookingStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ApplySessionChange(ctx context.Context, prev *models.Booking, change repository.SessionChange) (bool, error)
}

type Catalog interface {
	Session(ctx context.Context, id string) (*catalog.Session, error)
	Tour(ctx context.Context, id string) (*catalog.Tour, error)
}

type ChangeRequest struct {
	BookingID    uuid.UUID
	NewSessionID string
	NewTourID    string
}

type ChangeResult struct {
	Booking          *models.Booking     `json:"booking"`
	PriceDifference  int64               `json:"price_difference"`
	AmountPaid       int64               `json:"amount_paid"`
	RemainingBalance int64               `json:"remaining_balance"`
	NewTotal         int64               `json:"new_total"`
	NewDeposit       int64               `json:"new_deposit"`
	Status           types.BookingStatus `json:"status"`
	Message          string              `json:"message"`
}

type Changer struct {
	bookings    BookingStore
	catalog     Catalog
	balanceLead int
}

// NewChanger returns a Changer that sets the balance due date balanceLeadDays
// before the new session starts.
func NewChanger(bookings BookingStore, catalog Catalog, balanceLeadDays int) *Changer {
	return &Changer{bookings: bookings, catalog: catalog, balanceLead: balanceLeadDays}
}

// PaidFromStatus reconstructs what the customer has paid from the booking status.
func PaidFromStatus(b *models.Booking) int64 {
	switch b.Status {
	case types.BOOKING_FULLY_PAID:
		return b.TotalAmount
	case types.BOOKING_DEPOSIT_PAID:
		return b.DepositAmount
	}
	return 0
}

// DeriveStatus compares what was paid against the new thresholds.
func DeriveStatus(paid, total, deposit int64) types.BookingStatus {
	switch {
	case paid >= total:
		return types.BOOKING_FULLY_PAID
	case paid >= deposit:
		return types.BOOKING_DEPOSIT_PAID
	}
	return types.BOOKING_PENDING
}

func (c *Changer) Change(ctx context.Context, req ChangeRequest) (*ChangeResult, error) {
	if req.NewSessionID == "" {
		return nil, fmt.Errorf("%w: newSessionId is required", types.ErrValidation)
	}
	if req.BookingID == uuid.Nil {
		return nil, fmt.Errorf("%w: bookingId is required", types.ErrValidation)
	}

	booking, err := c.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	session, err := c.catalog.Session(ctx, req.NewSessionID)
	if err != nil {
		return nil, err
	}

	qty := int64(max(booking.Quantity, 1))
	newTotal := catalog.Cents(session.Price) * qty
	newDeposit := catalog.Cents(session.Deposit * float64(qty))
	newDeposit = min(newDeposit, newTotal)
	paid := PaidFromStatus(booking)
	status := DeriveStatus(paid, newTotal, newDeposit)

	change := repository.SessionChange{
		SessionID:      req.NewSessionID,
		TourID:         booking.TourID,
		SessionDate:    session.Start,
		SessionEndDate: session.End,
		TotalAmount:    newTotal,
		DepositAmount:  newDeposit,
		AmountPaid:     paid,
		Status:         status,
	}
	if !session.Start.IsZero() {
		change.BalanceDueDate = session.Start.AddDate(0, 0, -c.balanceLead)
	}
	if req.NewTourID != "" && req.NewTourID != booking.TourID {
		tour, err := c.catalog.Tour(ctx, req.NewTourID)
		if err != nil {
			return nil, err
		}
		change.TourID = req.NewTourID
		change.TourTitle = tour.Title
		change.TourDestination = tour.Destination
	}

	applied, err := c.bookings.ApplySessionChange(ctx, booking, change)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: booking %s changed while re-pricing", types.ErrConflict, booking.ID)
	}
	log.Printf("[Sessions] booking %s moved %s -> %s, %s\n", booking.ID, booking.SessionID, req.NewSessionID, status)

	prevTotal := booking.TotalAmount
	applyChange(booking, change)
	remaining := newTotal - paid
	return &ChangeResult{
		Booking:          booking,
		PriceDifference:  newTotal - prevTotal,
		AmountPaid:       paid,
		RemainingBalance: remaining,
		NewTotal:         newTotal,
		NewDeposit:       newDeposit,
		Status:           status,
		Message:          statusMessage(status, remaining, newDeposit),
	}, nil
}

func applyChange(b *models.Booking, change repository.SessionChange) {
	b.SessionID = change.SessionID
	b.TourID = change.TourID
	b.TotalAmount = change.TotalAmount
	b.DepositAmount = change.DepositAmount
	b.AmountPaid = change.AmountPaid
	b.Status = change.Status
	if change.TourTitle != "" {
		b.TourTitle = change.TourTitle
		b.TourDestination = change.TourDestination
	}
	if !change.SessionDate.IsZero() {
		b.SessionDate = timePtr(change.SessionDate)
		b.BalanceDueDate = timePtr(change.BalanceDueDate)
	}
	if !change.SessionEndDate.IsZero() {
		b.SessionEndDate = timePtr(change.SessionEndDate)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func statusMessage(status types.BookingStatus, remaining, newDeposit int64) string {
	switch status {
	case types.BOOKING_FULLY_PAID:
		if remaining < 0 {
			return fmt.Sprintf("Booking is fully paid. Customer is in credit by %s", types.FormatCents(-remaining))
		}
		return "Booking is fully paid"
	case types.BOOKING_DEPOSIT_PAID:
		return fmt.Sprintf("Deposit paid with remaining balance %s", types.FormatCents(remaining))
	}
	return fmt.Sprintf("Amount paid is below the new deposit threshold, new deposit required %s", types.FormatCents(newDeposit))
}
