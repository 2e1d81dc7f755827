// Package extraction infers booking intent and fields from a conversation.
package extraction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

var extractionTracer = otel.Tracer("booking.internal.extraction")

// Observer records NLU call outcomes.
type Observer interface {
	ObserveNLU(operation string, err error, elapsed time.Duration)
}

// Extractor asks the NLU service for an ExtractionResult. It never fails:
// errors, timeouts and invalid output all degrade to NoIntent.
type Extractor struct {
	client   nlu.Client
	timeout  time.Duration
	observer Observer
	logger   *logging.Logger
}

// NewExtractor creates an Extractor. timeout bounds each NLU call.
func NewExtractor(client nlu.Client, timeout time.Duration, observer Observer, logger *logging.Logger) *Extractor {
	if client == nil {
		panic("extraction: nlu client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{client: client, timeout: timeout, observer: observer, logger: logger}
}

// Extract reads the ordered history and returns the booking fields it implies.
// today is the tenant-local calendar date.
func (e *Extractor) Extract(ctx context.Context, history []nlu.Message, today time.Time) Result {
	ctx, span := extractionTracer.Start(ctx, "extraction.extract")
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, buildPrompt(history, today))
	if e.observer != nil {
		e.observer.ObserveNLU("extract", err, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("extraction call failed", "error", err)
		return NoIntent()
	}

	res, err := Parse(resp.Text, today)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("extraction output rejected", "error", err)
		return NoIntent()
	}
	span.SetAttributes(
		attribute.Bool("booking.has_appointment", res.HasAppointment),
		attribute.Bool("booking.ready", res.ReadyToCreate),
		attribute.Float64("booking.confidence", res.Confidence),
	)
	return res
}
