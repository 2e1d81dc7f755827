package reply

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/booking-concierge/internal/booking"
	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/internal/tenant"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// Observer records NLU call outcomes.
type Observer interface {
	ObserveNLU(operation string, err error, elapsed time.Duration)
}

// bookingClaim matches replies that announce a booking as done.
var bookingClaim = regexp.MustCompile(`(?i)\b(is|are|has been|have been|is now|est|a été|est bien|sont)\s+(confirmed|booked|scheduled|reserved|confirmée?s?|réservée?s?|enregistrée?s?)`)

// Composer turns a booking outcome into the text sent to the customer.
type Composer struct {
	client   nlu.Client
	timeout  time.Duration
	observer Observer
	logger   *logging.Logger
}

// NewComposer creates a Composer. A nil client always uses templates.
func NewComposer(client nlu.Client, timeout time.Duration, observer Observer, logger *logging.Logger) *Composer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{client: client, timeout: timeout, observer: observer, logger: logger}
}

// Compose generates the reply for out. Storage failures always get the fixed
// apology. A generated reply that claims a booking which was not committed is
// replaced by the template.
func (c *Composer) Compose(ctx context.Context, profile *tenant.Profile, out booking.Outcome, history []nlu.Message) string {
	lastCustomer := lastCustomerText(history)
	fallback := Template(out, profile.Name, lastCustomer)
	if c.client == nil || out.State == booking.StateFailed {
		return fallback
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := c.client.Complete(ctx, nlu.Request{
		System:      BuildContext(profile, out),
		Messages:    history,
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if c.observer != nil {
		c.observer.ObserveNLU("reply", err, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("reply generation failed, using template", "tenant_id", profile.ID, "state", out.State, "error", err)
		return fallback
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return fallback
	}
	if out.State != booking.StateCommitted && bookingClaim.MatchString(text) {
		c.logger.Warn("generated reply claims an uncommitted booking", "tenant_id", profile.ID, "state", out.State)
		return fallback
	}
	return text
}

func lastCustomerText(history []nlu.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == nlu.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
