package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"lumen-backend/internal/config"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Tag     string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SESSender struct {
	client *sesv2.Client
	from   string
	log    *zap.Logger
}

func NewSESSender(ctx context.Context, cfg config.MailConfig, log *zap.Logger) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(awsCfg), from: cfg.From, log: log.Named("ses")}, nil
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.Tag != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("template"), Value: aws.String(msg.Tag)}}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.log.Info("email sent", zap.String("template", msg.Tag), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// LogSender writes messages to the log. It stands in for SES when mail is
// disabled.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.Named("mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email (not sent)", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("template", msg.Tag))
	return nil
}

// NewSender picks SES when mail is enabled.
func NewSender(ctx context.Context, cfg config.MailConfig, log *zap.Logger) (Sender, error) {
	if !cfg.Enabled {
		return NewLogSender(log), nil
	}
	return NewSESSender(ctx, cfg, log)
}
