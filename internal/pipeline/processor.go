// Package pipeline runs one inbound message through tenant resolution,
// conversation storage, booking coordination, reply composition and dispatch.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/booking-concierge/internal/booking"
	"github.com/wolfman30/booking-concierge/internal/conversation"
	"github.com/wolfman30/booking-concierge/internal/messaging"
	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/internal/tenant"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

const defaultStoreTimeout = 5 * time.Second

type TenantResolver interface {
	ByRoutingKey(ctx context.Context, routingKey string) (*tenant.Profile, error)
}

// EventGuard claims provider message ids so retried deliveries are skipped.
type EventGuard interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type ConversationStore interface {
	EnsureConversation(ctx context.Context, tenantID uuid.UUID, customer string) (*conversation.Conversation, error)
	AppendMessage(ctx context.Context, msg conversation.Message) (*conversation.Message, error)
	History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error)
}

type Coordinator interface {
	Handle(ctx context.Context, req booking.Request) booking.Outcome
}

type Composer interface {
	Compose(ctx context.Context, profile *tenant.Profile, out booking.Outcome, history []nlu.Message) string
}

// Observer records pipeline metrics.
type Observer interface {
	ObserveOutcome(state string)
	ObserveDispatch(provider string, err error)
}

// Config tunes the processor.
type Config struct {
	StoreTimeout time.Duration
	HistoryLimit int
}

// Processor implements messaging.Processor.
type Processor struct {
	tenants       TenantResolver
	guard         EventGuard
	conversations ConversationStore
	coordinator   Coordinator
	composer      Composer
	observer      Observer
	logger        *logging.Logger
	cfg           Config
	now           func() time.Time
}

// NewProcessor wires the pipeline. guard and observer may be nil.
func NewProcessor(tenants TenantResolver, guard EventGuard, conversations ConversationStore, coordinator Coordinator, composer Composer, observer Observer, cfg Config, logger *logging.Logger) *Processor {
	if tenants == nil || conversations == nil || coordinator == nil || composer == nil {
		panic("pipeline: tenants, conversations, coordinator and composer are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	return &Processor{
		tenants:       tenants,
		guard:         guard,
		conversations: conversations,
		coordinator:   coordinator,
		composer:      composer,
		observer:      observer,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Process handles one inbound message. Every failure is logged here; none
// reaches the provider.
func (p *Processor) Process(ctx context.Context, msg messaging.Inbound, replies messaging.Sender) {
	log := p.logger.With("provider", msg.Provider, "message_id", msg.MessageID)

	profile, fresh := p.admit(ctx, msg, log)
	if profile == nil || !fresh {
		return
	}
	log = log.With("tenant_id", profile.ID.String())

	conv, err := p.record(ctx, profile.ID, msg)
	if err != nil {
		log.Error("failed to store inbound message", "error", err)
		out := booking.Outcome{State: booking.StateFailed, Err: err}
		p.observeOutcome(out)
		text := p.composer.Compose(ctx, profile, out, []nlu.Message{{Role: nlu.RoleUser, Content: msg.Body}})
		p.dispatch(ctx, msg, replies, text, log)
		return
	}
	log = log.With("conversation_id", conv.ID.String())

	history := p.history(ctx, conv.ID, msg, log)
	out := p.coordinator.Handle(ctx, booking.Request{
		Tenant:         profile,
		ConversationID: conv.ID,
		Customer:       msg.From,
		History:        history,
		Now:            p.now(),
	})
	p.observeOutcome(out)
	log.Info("booking turn handled", "state", string(out.State), "reason", string(out.Reason))

	text := p.composer.Compose(ctx, profile, out, history)

	storeCtx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	_, err = p.conversations.AppendMessage(storeCtx, conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.RoleAssistant,
		Body:           text,
		Type:           conversation.TypeText,
	})
	cancel()
	if err != nil {
		log.Error("failed to store reply", "error", err)
	}

	p.dispatch(ctx, msg, replies, text, log)
}

// admit resolves the tenant and claims the message id concurrently. A nil
// profile means the message is dropped; fresh is false for duplicates.
func (p *Processor) admit(ctx context.Context, msg messaging.Inbound, log *logging.Logger) (*tenant.Profile, bool) {
	var (
		profile *tenant.Profile
		fresh   = true
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lookupCtx, cancel := context.WithTimeout(gctx, p.cfg.StoreTimeout)
		defer cancel()
		var err error
		profile, err = p.tenants.ByRoutingKey(lookupCtx, tenant.NormalizeRoutingKey(msg.To))
		return err
	})
	if p.guard != nil {
		g.Go(func() error {
			guardCtx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
			defer cancel()
			claimed, err := p.guard.MarkProcessed(guardCtx, msg.Provider, msg.MessageID)
			if err != nil {
				log.Warn("duplicate guard unavailable, processing anyway", "error", err)
				return nil
			}
			fresh = claimed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			log.Warn("no tenant for routing key, dropping message", "routing_key", msg.To)
		} else {
			log.Error("tenant lookup failed, dropping message", "routing_key", msg.To, "error", err)
		}
		return nil, false
	}
	if !fresh {
		log.Info("duplicate delivery skipped")
	}
	return profile, fresh
}

func (p *Processor) record(ctx context.Context, tenantID uuid.UUID, msg messaging.Inbound) (*conversation.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	conv, err := p.conversations.EnsureConversation(ctx, tenantID, msg.From)
	if err != nil {
		return nil, err
	}
	if _, err := p.conversations.AppendMessage(ctx, conversation.Message{
		ConversationID:    conv.ID,
		Role:              conversation.RoleCustomer,
		Body:              msg.Body,
		Type:              conversation.TypeText,
		ProviderMessageID: msg.MessageID,
	}); err != nil {
		return nil, err
	}
	return conv, nil
}

// history loads the transcript, degrading to the current message alone.
func (p *Processor) history(ctx context.Context, conversationID uuid.UUID, msg messaging.Inbound, log *logging.Logger) []nlu.Message {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	msgs, err := p.conversations.History(ctx, conversationID, p.cfg.HistoryLimit)
	if err != nil || len(msgs) == 0 {
		if err != nil {
			log.Warn("failed to load history, using current message only", "error", err)
		}
		return []nlu.Message{{Role: nlu.RoleUser, Content: msg.Body}}
	}
	return conversation.Transcript(msgs)
}

func (p *Processor) dispatch(ctx context.Context, msg messaging.Inbound, replies messaging.Sender, text string, log *logging.Logger) {
	if replies == nil || text == "" {
		return
	}
	err := replies.Send(ctx, messaging.Outbound{From: msg.ReplyVia, To: msg.From, Body: text})
	if p.observer != nil {
		p.observer.ObserveDispatch(msg.Provider, err)
	}
	if err != nil {
		log.Error("failed to dispatch reply", "error", err)
	}
}

func (p *Processor) observeOutcome(out booking.Outcome) {
	if p.observer != nil {
		p.observer.ObserveOutcome(string(out.State))
	}
}
