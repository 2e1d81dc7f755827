package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var conversationTracer = otel.Tracer("booking.internal.conversation")

// Querier is the subset of pgxpool.Pool used by Store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations and messages in Postgres.
type Store struct {
	db Querier
}

// NewStore creates a store backed by a pgx pool.
func NewStore(db Querier) *Store {
	if db == nil {
		panic("conversation: pgx pool required")
	}
	return &Store{db: db}
}

// EnsureConversation returns the thread for (tenant, customer), creating it on
// the first message and bumping last activity otherwise.
func (s *Store) EnsureConversation(ctx context.Context, tenantID uuid.UUID, customer string) (*Conversation, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.ensure")
	defer span.End()
	span.SetAttributes(attribute.String("booking.tenant_id", tenantID.String()))

	query := `
		INSERT INTO conversations (id, tenant_id, customer_address, status, last_activity_at)
		VALUES ($1, $2, $3, 'active', now())
		ON CONFLICT (tenant_id, customer_address)
		DO UPDATE SET last_activity_at = now(), status = 'active'
		RETURNING id, tenant_id, customer_address, status, last_activity_at, (xmax = 0)
	`
	var c Conversation
	err := s.db.QueryRow(ctx, query, uuid.New(), tenantID, customer).
		Scan(&c.ID, &c.TenantID, &c.CustomerAddress, &c.Status, &c.LastActivityAt, &c.Created)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: ensure: %w", err)
	}
	return &c, nil
}

// AppendMessage stores a message and returns it with its id and timestamp.
func (s *Store) AppendMessage(ctx context.Context, msg Message) (*Message, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.append")
	defer span.End()

	if msg.Type == "" {
		msg.Type = TypeText
	}
	query := `
		INSERT INTO messages (conversation_id, role, body, message_type, provider_message_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query, msg.ConversationID, string(msg.Role), msg.Body, msg.Type, msg.ProviderMessageID).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: append message: %w", err)
	}
	return &msg, nil
}

// History returns the most recent limit messages in send order. A limit of
// zero or less returns the whole thread.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.history")
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.Query(ctx, `
			SELECT id, conversation_id, role, body, message_type, COALESCE(provider_message_id, ''), created_at
			FROM (
				SELECT * FROM messages WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2
			) recent
			ORDER BY id`, conversationID, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT id, conversation_id, role, body, message_type, COALESCE(provider_message_id, ''), created_at
			FROM messages WHERE conversation_id = $1
			ORDER BY id`, conversationID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Body, &m.Type, &m.ProviderMessageID, &m.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: iterate history: %w", err)
	}
	return out, nil
}
