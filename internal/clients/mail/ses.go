package mail

import (
	"context"
	"fmt"

	"waitlist-server/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESConfig holds the AWS settings for the SES transport
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the service URL (local stacks, tests).
	Endpoint string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient sends mail through Amazon SES v2
type SESClient struct {
	client sesAPI
	logger *observability.Logger
}

// NewSESClient loads the AWS config with static credentials and creates the
// SES client.
func NewSESClient(ctx context.Context, cfg SESConfig, logger *observability.Logger) (*SESClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &SESClient{client: client, logger: logger}, nil
}

func (c *SESClient) Send(ctx context.Context, msg Message) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "mail_provider", Value: "ses"},
		observability.Field{Key: "email_to", Value: observability.RedactEmail(msg.To)},
	)

	result, err := c.client.SendEmail(ctx, buildSESInput(msg))
	if err != nil {
		c.logger.Error(ctx, "failed to send email via SES", err)
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	c.logger.Info(ctx, "email sent successfully",
		observability.Field{Key: "message_id", Value: aws.ToString(result.MessageId)},
	)
	return nil
}

func buildSESInput(msg Message) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	return input
}
