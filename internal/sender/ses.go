package sender

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
)

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, in *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// SESTransport delivers through Amazon SES with static credentials.
type SESTransport struct {
	api   sesAPI
	from  string
	clock engine.Clock
}

// NewSESTransport builds the SES client from email settings.
// It returns ErrNotConfigured when sender or credentials are missing.
func NewSESTransport(ctx context.Context, s config.EmailSettings) (*SESTransport, error) {
	if !s.SESConfigured() {
		return nil, ErrNotConfigured
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.SESRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.SESAccessKey, s.SESSecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrAWSConfig, err)
	}
	return newSESTransport(sesv2.NewFromConfig(cfg), fromAddress(s), engine.RealClock{}), nil
}

func newSESTransport(api sesAPI, from string, clock engine.Clock) *SESTransport {
	return &SESTransport{api: api, from: from, clock: clock}
}

func fromAddress(s config.EmailSettings) string {
	if s.FromName == "" {
		return s.From
	}
	return fmt.Sprintf(config.FormatFromAddress, s.FromName, s.From)
}

// Deliver implements Transport.
func (t *SESTransport) Deliver(ctx context.Context, msg Message) (Delivery, error) {
	d := Delivery{To: msg.To, Method: config.DeliverySES, Timestamp: t.clock.Now()}

	body := &types.Body{
		Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(config.EmailCharset)},
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(config.EmailCharset)}
	}

	out, err := t.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(t.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(config.EmailCharset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		d.Status = config.StatusFailed
		d.Error = err.Error()
		return d, fmt.Errorf("%s: %w", config.ErrEmailDeliver, err)
	}

	d.Status = config.StatusSent
	d.MessageID = aws.ToString(out.MessageId)
	return d, nil
}

// Check implements Checker by reading the account sending status.
func (t *SESTransport) Check(ctx context.Context) error {
	if _, err := t.api.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		return fmt.Errorf("%s: %w", config.ErrSESUnreachable, err)
	}
	return nil
}
