// Package reminders sends payment reminders on fixed days before a due date.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"time"
	"tourledger/src/models"
	"tourledger/src/types"
)

const day = 24 * time.Hour

var (
	BalanceDays = []int{7, 3, 1}
	DepositDays = []int{3, 1}
)

type BookingStore interface {
	ListDue(ctx context.Context, status types.BookingStatus, column string, from, to time.Time) ([]models.Booking, error)
}

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Summary struct {
	BalanceReminders int `json:"balance_reminders"`
	DepositReminders int `json:"deposit_reminders"`
	Failed           int `json:"failed"`
}

type Scanner struct {
	bookings BookingStore
	notifier Notifier
	now      func() time.Time
}

func NewScanner(bookings BookingStore, notifier Notifier) *Scanner {
	return &Scanner{bookings: bookings, notifier: notifier, now: time.Now}
}

// DaysUntil is ceil((due - now) / 24h).
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

type series struct {
	name   string
	status types.BookingStatus
	column string
	days   []int
	due    func(b *models.Booking) *time.Time
	msg    func(b *models.Booking, days int) (string, string)
}

// Run scans both reminder series. A failure for one booking is counted and
// the scan continues; a failed query is returned after the other series ran.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	now := s.now()
	summary := &Summary{}
	all := []series{
		{
			name:   "balance",
			status: types.BOOKING_DEPOSIT_PAID,
			column: "balance_due_date",
			days:   BalanceDays,
			due:    func(b *models.Booking) *time.Time { return b.BalanceDueDate },
			msg:    balanceMessage,
		},
		{
			name:   "deposit",
			status: types.BOOKING_PENDING,
			column: "deposit_due_date",
			days:   DepositDays,
			due:    func(b *models.Booking) *time.Time { return b.DepositDueDate },
			msg:    depositMessage,
		},
	}

	var errs []error
	for _, ser := range all {
		sent, failed, err := s.scan(ctx, now, ser)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s reminders: %w", ser.name, err))
		}
		summary.Failed += failed
		if ser.status == types.BOOKING_DEPOSIT_PAID {
			summary.BalanceReminders = sent
		} else {
			summary.DepositReminders = sent
		}
	}
	log.Printf("[Reminders] sent %d balance and %d deposit reminders, %d failed\n", summary.BalanceReminders, summary.DepositReminders, summary.Failed)
	return summary, errors.Join(errs...)
}

func (s *Scanner) scan(ctx context.Context, now time.Time, ser series) (sent, failed int, err error) {
	window := time.Duration(slices.Max(ser.days)) * day
	bookings, err := s.bookings.ListDue(ctx, ser.status, ser.column, now, now.Add(window))
	if err != nil {
		return 0, 0, err
	}
	for i := range bookings {
		b := &bookings[i]
		due := ser.due(b)
		if due == nil {
			continue
		}
		days := DaysUntil(*due, now)
		if !slices.Contains(ser.days, days) {
			continue
		}
		if b.CustomerEmail == "" {
			log.Printf("[Reminders] booking %s has no customer email\n", b.ID)
			failed++
			continue
		}
		subject, body := ser.msg(b, days)
		if err := s.notifier.Send(ctx, b.CustomerEmail, subject, body); err != nil {
			log.Printf("[Reminders] %s reminder for booking %s failed: %s\n", ser.name, b.ID, err.Error())
			failed++
			continue
		}
		sent++
	}
	return sent, failed, nil
}

func plural(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func tourName(b *models.Booking) string {
	if b.TourTitle != "" {
		return b.TourTitle
	}
	return "your tour"
}

func balanceMessage(b *models.Booking, days int) (string, string) {
	subject := fmt.Sprintf("Balance due in %s for %s", plural(days), tourName(b))
	body := fmt.Sprintf("Hi %s,\n\nThe remaining balance of %s for %s is due on %s.\n",
		b.CustomerName, types.FormatCents(b.RemainingBalance()), tourName(b), b.BalanceDueDate.Format("2 January 2006"))
	return subject, body
}

func depositMessage(b *models.Booking, days int) (string, string) {
	subject := fmt.Sprintf("Deposit due in %s for %s", plural(days), tourName(b))
	body := fmt.Sprintf("Hi %s,\n\nYour deposit of %s for %s is due on %s to secure your place.\n",
		b.CustomerName, types.FormatCents(b.DepositAmount), tourName(b), b.DepositDueDate.Format("2 January 2006"))
	return subject, body
}
