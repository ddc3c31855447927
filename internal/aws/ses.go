package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
)

type EmailService struct {
	client *ses.Client
	sender string
}

func NewEmailService(ctx context.Context, cfg config.AWSConfig) (*EmailService, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewEmailServiceFromConfig(awsCfg, cfg.EndpointURL, cfg.FromEmail), nil
}

func NewEmailServiceFromConfig(awsCfg aws.Config, endpoint, sender string) *EmailService {
	// override endpoint if provided (for LocalStack)
	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &EmailService{
		client: client,
		sender: sender,
	}
}

func (s *EmailService) Sender() string {
	return s.sender
}

// SendEmail sends an HTML message from the configured sender.
func (s *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Body: &types.Body{
				Html: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(body),
				},
			},
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(subject),
			},
		},
		Source: aws.String(s.sender),
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	return nil
}

// VerifyEmailIdentity registers the sender address; LocalStack requires it
// before SendEmail succeeds.
func (s *EmailService) VerifyEmailIdentity(ctx context.Context) (*ses.VerifyEmailIdentityOutput, error) {
	out, err := s.client.VerifyEmailIdentity(ctx, &ses.VerifyEmailIdentityInput{
		EmailAddress: aws.String(s.sender),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify email identity %s: %w", s.sender, err)
	}
	return out, nil
}
