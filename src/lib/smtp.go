package lib

import (
	"context"
	"log"
	"tourledger/src/config"

	"github.com/wneessen/go-mail"
)

type SendMailInput struct {
	From     string
	FromName string
	To       []string
	Cc       []string
	Bcc      []string
	ReplyTo  string
	Subject  string
	Body     string
	Html     bool
}

type SMTPMailer struct {
	client *mail.Client
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	c, err := mail.NewClient(
		cfg.Host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		log.Printf("Could not initialize smtp client: %s\n", err.Error())
		return nil, err
	}
	return &SMTPMailer{client: c}, nil
}

// BuildMessage converts input into a go-mail message.
func BuildMessage(input *SendMailInput) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(input.FromName, input.From); err != nil {
		return nil, err
	}
	if err := msg.To(input.To...); err != nil {
		return nil, err
	}
	if input.ReplyTo != "" {
		if err := msg.ReplyTo(input.ReplyTo); err != nil {
			log.Printf("Failed to set Reply-To address: %s\n", err.Error())
		}
	}
	if len(input.Cc) > 0 {
		if err := msg.Cc(input.Cc...); err != nil {
			log.Printf("Failed to set Cc address: %s\n", err.Error())
		}
	}
	if len(input.Bcc) > 0 {
		if err := msg.Bcc(input.Bcc...); err != nil {
			log.Printf("Failed to set Bcc address: %s\n", err.Error())
		}
	}
	msg.Subject(input.Subject)
	if input.Html {
		msg.SetBodyString(mail.TypeTextHTML, input.Body)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, input.Body)
	}
	return msg, nil
}

func (s *SMTPMailer) Send(ctx context.Context, input *SendMailInput) error {
	msg, err := BuildMessage(input)
	if err != nil {
		return err
	}
	return s.client.DialAndSendWithContext(ctx, msg)
}
