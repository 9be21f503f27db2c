package app

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/mail"
)

// NewSender builds the mail.Sender for driver. The closer is nil unless the
// sender holds a connection, as the amqp driver does.
func NewSender(ctx context.Context, cfg Config, driver string) (mail.Sender, io.Closer, error) {
	switch driver {
	case MailDriverSES:
		client, err := newSESClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return mail.NewSESSender(client, cfg.MailFrom), nil, nil

	case MailDriverAMQP:
		sender, err := mail.DialQueueSender(cfg.AMQPURL, cfg.MailQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mail queue: %w", err)
		}
		return sender, sender, nil

	default:
		return mail.LogSender{}, nil, nil
	}
}

func newSESClient(ctx context.Context, cfg Config) (*sesv2.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return sesv2.NewFromConfig(awsCfg), nil
}
