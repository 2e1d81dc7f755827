// Package conversation stores customer threads and their ordered messages.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-concierge/internal/nlu"
)

// Role identifies who sent a message.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAssistant Role = "assistant"
)

const (
	StatusActive = "active"
	StatusClosed = "closed"

	TypeText = "text"
)

// Conversation is the open thread between a tenant and one customer address.
type Conversation struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CustomerAddress string
	Status          string
	LastActivityAt  time.Time
	// Created is true when this call opened the thread.
	Created bool
}

// Message is an immutable entry in a conversation.
type Message struct {
	ID                int64
	ConversationID    uuid.UUID
	Role              Role
	Body              string
	Type              string
	ProviderMessageID string
	CreatedAt         time.Time
}

// Transcript converts stored messages to NLU chat turns, oldest first.
func Transcript(msgs []Message) []nlu.Message {
	out := make([]nlu.Message, 0, len(msgs))
	for _, m := range msgs {
		role := nlu.RoleUser
		if m.Role == RoleAssistant {
			role = nlu.RoleAssistant
		}
		out = append(out, nlu.Message{Role: role, Content: m.Body})
	}
	return out
}
