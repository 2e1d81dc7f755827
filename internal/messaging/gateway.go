package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/booking-concierge/pkg/logging"
)

const (
	maxWebhookBody        = 1 << 20
	DefaultProcessTimeout = 90 * time.Second
)

// Processor runs the booking pipeline for one inbound message. It owns its
// failures; the gateway has already acknowledged the provider.
type Processor interface {
	Process(ctx context.Context, msg Inbound, replies Sender)
}

// Observer records webhook metrics.
type Observer interface {
	ObserveInbound(provider, status string)
	ObserveWebhookLatency(provider string, elapsed time.Duration)
}

// Gateway serves provider webhooks. Well-formed envelopes are acknowledged
// before processing, which continues in the background.
type Gateway struct {
	processor      Processor
	observer       Observer
	logger         *logging.Logger
	processTimeout time.Duration
	wg             sync.WaitGroup
}

func NewGateway(processor Processor, observer Observer, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		processor:      processor,
		observer:       observer,
		logger:         logger,
		processTimeout: DefaultProcessTimeout,
	}
}

// Verify serves the GET subscription handshake.
func (g *Gateway) Verify(v Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challenge, ok := v.Challenge(r)
		if !ok {
			http.Error(w, "verification failed", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

// Inbound serves POST deliveries for p.
func (g *Gateway) Inbound(p Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		name := p.Name()
		defer func() {
			if g.observer != nil {
				g.observer.ObserveWebhookLatency(name, time.Since(start))
			}
		}()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			g.reject(w, name, "read_error", http.StatusBadRequest)
			return
		}
		if err := p.Authenticate(r, body); err != nil {
			g.logger.Warn("webhook signature rejected", "provider", name, "error", err)
			if errors.Is(err, ErrMalformedEnvelope) {
				g.reject(w, name, "malformed", http.StatusBadRequest)
				return
			}
			// Forged requests are refused, never acknowledged.
			g.reject(w, name, "unauthorized", http.StatusUnauthorized)
			return
		}

		msgs, err := p.Parse(r, body)
		if err != nil {
			g.logger.Warn("malformed webhook envelope", "provider", name, "error", err)
			g.reject(w, name, "malformed", http.StatusBadRequest)
			return
		}

		p.Ack(w)
		if len(msgs) == 0 {
			g.observe(name, "ignored")
			return
		}
		g.observe(name, "accepted")

		ctx := context.WithoutCancel(r.Context())
		for _, msg := range msgs {
			g.dispatch(ctx, msg, p)
		}
	}
}

func (g *Gateway) dispatch(parent context.Context, msg Inbound, replies Sender) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				g.logger.Error("inbound processing panicked", "provider", msg.Provider, "message_id", msg.MessageID, "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(parent, g.processTimeout)
		defer cancel()
		g.processor.Process(ctx, msg, replies)
	}()
}

// Wait blocks until in-flight messages finish or ctx ends.
func (g *Gateway) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) reject(w http.ResponseWriter, provider, status string, code int) {
	g.observe(provider, status)
	http.Error(w, `{"error":"`+status+`"}`, code)
}

func (g *Gateway) observe(provider, status string) {
	if g.observer != nil {
		g.observer.ObserveInbound(provider, status)
	}
}
