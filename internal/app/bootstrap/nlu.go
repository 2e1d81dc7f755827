package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/booking-concierge/internal/config"
	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// BuildNLUClient selects the language model backend from NLU_PROVIDER. The
// returned close func releases provider connections and is never nil.
func BuildNLUClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (nlu.Client, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	wantGemini := cfg.NLUProvider == appconfig.NLUProviderGemini ||
		(cfg.NLUProvider == appconfig.NLUProviderAuto && strings.TrimSpace(cfg.GeminiAPIKey) != "")
	wantBedrock := cfg.NLUProvider == appconfig.NLUProviderBedrock ||
		(cfg.NLUProvider == appconfig.NLUProviderAuto && strings.TrimSpace(cfg.BedrockModelID) != "")

	var (
		gemini  nlu.Client
		bedrock nlu.Client
		closer  = noop
	)
	if wantGemini {
		client, err := nlu.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		gemini = nlu.WithTimeout(client, cfg.NLUTimeout)
		closer = client.Close
	}
	if wantBedrock {
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			_ = closer()
			return nil, noop, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			_ = closer()
			return nil, noop, err
		}
		bedrock = nlu.WithTimeout(nlu.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), cfg.NLUTimeout)
	}

	switch {
	case gemini != nil && bedrock != nil:
		logger.Info("nlu configured", "primary", "gemini", "fallback", "bedrock", "model", cfg.GeminiModel)
		return nlu.NewFallbackClient(gemini, bedrock, logger), closer, nil
	case gemini != nil:
		logger.Info("nlu configured", "primary", "gemini", "model", cfg.GeminiModel)
		return gemini, closer, nil
	case bedrock != nil:
		logger.Info("nlu configured", "primary", "bedrock", "model", cfg.BedrockModelID)
		return bedrock, closer, nil
	}
	return nil, noop, fmt.Errorf("bootstrap: no nlu provider configured (provider %q)", cfg.NLUProvider)
}

func loadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return awsCfg, nil
}
