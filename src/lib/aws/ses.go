package aws

import (
	"context"
	"fmt"
	"log"
	"tourledger/src/lib"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESMailer struct {
	client *ses.Client
}

func NewSESMailer(cfg aws.Config) *SESMailer {
	return &SESMailer{client: ses.NewFromConfig(cfg)}
}

// BuildSendEmailInput converts input into an SES request.
func BuildSendEmailInput(input *lib.SendMailInput) *ses.SendEmailInput {
	body := &types.Body{}
	content := &types.Content{Data: aws.String(input.Body), Charset: aws.String("UTF-8")}
	if input.Html {
		body.Html = content
	} else {
		body.Text = content
	}
	from := input.From
	if input.FromName != "" {
		from = fmt.Sprintf("%s <%s>", input.FromName, input.From)
	}
	out := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses:  input.To,
			CcAddresses:  input.Cc,
			BccAddresses: input.Bcc,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(input.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}
	if input.ReplyTo != "" {
		out.ReplyToAddresses = []string{input.ReplyTo}
	}
	return out
}

func (s *SESMailer) Send(ctx context.Context, input *lib.SendMailInput) error {
	out, err := s.client.SendEmail(ctx, BuildSendEmailInput(input))
	if err != nil {
		log.Printf("Error sending email: %s\n", err.Error())
		return err
	}
	log.Printf("Sent email with id: %s\n", aws.ToString(out.MessageId))
	return nil
}
