package nlu

import (
	"context"

	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// FallbackClient retries a failed primary call on a fallback provider.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient wraps primary. A nil fallback makes it a passthrough.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("nlu: primary client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return Response{}, err
	}

	c.logger.Warn("primary nlu failed, attempting fallback", "error", err)
	resp, fbErr := c.fallback.Complete(ctx, req)
	if fbErr != nil {
		c.logger.Error("fallback nlu also failed", "primary_error", err, "fallback_error", fbErr)
		return Response{}, fbErr
	}
	return resp, nil
}
