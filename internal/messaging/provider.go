// Package messaging adapts chat channel providers to a single inbound
// gateway and outbound sender.
package messaging

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrMalformedEnvelope marks a webhook body that cannot be read at all.
	ErrMalformedEnvelope = errors.New("messaging: malformed envelope")
	// ErrUnauthorized marks a webhook whose signature does not verify.
	ErrUnauthorized = errors.New("messaging: invalid signature")
)

// Inbound is one customer message received on a channel.
type Inbound struct {
	Provider  string
	MessageID string
	// From is the customer's channel address as the provider sent it.
	From string
	// To is the business address the message was sent to. It carries the
	// tenant routing key.
	To   string
	Body string
	// ReplyVia is the provider-specific sender handle for the reply.
	ReplyVia   string
	ReceivedAt time.Time
}

// Outbound is a reply to send on a channel.
type Outbound struct {
	From string
	To   string
	Body string
}

// Sender dispatches replies.
type Sender interface {
	Send(ctx context.Context, msg Outbound) error
}

// Provider adapts one channel: envelope parsing, signature checks,
// acknowledgement format and reply dispatch.
type Provider interface {
	Sender
	Name() string
	// Authenticate checks the request signature against the raw body.
	Authenticate(r *http.Request, body []byte) error
	// Parse extracts the messages of an envelope. Envelopes with no customer
	// text (status callbacks) yield none.
	Parse(r *http.Request, body []byte) ([]Inbound, error)
	// Ack writes the success acknowledgement.
	Ack(w http.ResponseWriter)
}

// Verifier is implemented by providers with a GET subscription handshake.
type Verifier interface {
	// Challenge returns the value to echo when the handshake is valid.
	Challenge(r *http.Request) (string, bool)
}
