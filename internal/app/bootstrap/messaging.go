package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/mobilephlebotomy/leadrouter/internal/config"
	"github.com/mobilephlebotomy/leadrouter/internal/messaging"
	"github.com/mobilephlebotomy/leadrouter/internal/notify"
	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// BuildSMSSender returns the Twilio sender when credentials are present and
// a log-only sender otherwise, plus the name of the choice for startup logs.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) (messaging.SMSSender, string) {
	if cfg == nil || strings.TrimSpace(cfg.TwilioAccountSID) == "" || strings.TrimSpace(cfg.TwilioAuthToken) == "" {
		return messaging.NewLogSender(logger), "log"
	}
	if cfg.TwilioFromNumber == "" && cfg.TwilioMessagingServiceSID == "" {
		return messaging.NewLogSender(logger), "log"
	}
	var opts []messaging.TwilioOption
	if cfg.TwilioMessagingServiceSID != "" {
		opts = append(opts, messaging.WithMessagingService(cfg.TwilioMessagingServiceSID))
	}
	return messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger, opts...), "twilio"
}

// BuildEmailSender picks the provider named by EMAIL_PROVIDER. Misconfigured
// providers are an error rather than a silent stub so deploys fail loudly.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	switch cfg.EmailProvider {
	case "", "stub":
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.LeadEmailFrom,
			FromName:  cfg.LeadEmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: SENDGRID_API_KEY required for sendgrid email provider")
		}
		return sender, nil
	case "ses":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		return notify.NewSESSender(client, notify.SESConfig{
			FromEmail:        cfg.LeadEmailFrom,
			FromName:         cfg.LeadEmailFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

// LoadAWSConfig builds the SDK config, using static credentials when both
// keys are set and the default chain otherwise.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}
