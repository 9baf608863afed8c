package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/conference-hub/internal/pkg/logger"
)

// Message is a fully rendered email.
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	HTML     string
	Template string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SESAPI is the part of the SES v2 client used for delivery.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends messages through AWS SES v2.
type SESSender struct {
	client    SESAPI
	from      string
	fromName  string
	configSet string
}

// NewSESSender creates an SES sender using from as the envelope sender.
func NewSESSender(client SESAPI, from, fromName, configSet string) *SESSender {
	return &SESSender{client: client, from: from, fromName: fromName, configSet: configSet}
}

// Send delivers msg through SES.
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("template"), Value: aws.String(msg.Template)},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	logger.Debug("ses message sent", "recipient", msg.To, "message_id", aws.ToString(out.MessageId))
	return nil
}

// LogSender only logs messages. It stands in for SES when no sender
// address is configured.
type LogSender struct{}

// Send logs msg.
func (LogSender) Send(_ context.Context, msg Message) error {
	logger.Info("notification not delivered: no sender configured", "recipient", msg.To, "subject", msg.Subject)
	return nil
}
