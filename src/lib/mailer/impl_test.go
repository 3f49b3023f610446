package mailer

import (
	"context"
	"errors"
	"testing"
	"tourledger/src/lib"

	"github.com/stretchr/testify/assert"
)

type recordingBackend struct {
	sent []*lib.SendMailInput
	err  error
}

func (r *recordingBackend) Send(_ context.Context, input *lib.SendMailInput) error {
	r.sent = append(r.sent, input)
	return r.err
}

func TestDispatcherSend(t *testing.T) {
	backend := &recordingBackend{}
	d := NewDispatcher(backend, "bookings@example.com", "Tours")

	err := d.Send(context.Background(), " guest@example.com ", "Balance due", "Hello")
	assert.Nil(t, err)
	if assert.Len(t, backend.sent, 1) {
		msg := backend.sent[0]
		assert.Equal(t, []string{"guest@example.com"}, msg.To)
		assert.Equal(t, "bookings@example.com", msg.From)
		assert.Equal(t, "Tours", msg.FromName)
		assert.False(t, msg.Html)
	}
}

func TestDispatcherRejectsEmptyRecipient(t *testing.T) {
	backend := &recordingBackend{}
	d := NewDispatcher(backend, "bookings@example.com", "Tours")

	err := d.Send(context.Background(), "", "Balance due", "Hello")
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, backend.sent)
}

func TestDispatcherPropagatesBackendError(t *testing.T) {
	boom := errors.New("smtp down")
	d := NewDispatcher(&recordingBackend{err: boom}, "bookings@example.com", "")

	assert.ErrorIs(t, d.Send(context.Background(), "guest@example.com", "s", "b"), boom)
}
