package mailer

import (
	"context"
	"errors"
	"log"
	"strings"
	"tourledger/src/lib"
)

var ErrNoRecipient = errors.New("missing recipient")

// Backend delivers a fully addressed message.
type Backend interface {
	Send(ctx context.Context, input *lib.SendMailInput) error
}

// Dispatcher sends plain-text notifications through the configured backend.
type Dispatcher struct {
	backend  Backend
	from     string
	fromName string
}

func NewDispatcher(backend Backend, from, fromName string) *Dispatcher {
	return &Dispatcher{backend: backend, from: from, fromName: fromName}
}

func (d *Dispatcher) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	input := &lib.SendMailInput{
		From:     d.from,
		FromName: d.fromName,
		To:       []string{to},
		Subject:  subject,
		Body:     body,
	}
	if err := d.backend.Send(ctx, input); err != nil {
		log.Printf("[Mailer] failed to send %q to %s: %s\n", subject, to, err.Error())
		return err
	}
	return nil
}
