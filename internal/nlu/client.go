// Package nlu talks to the hosted language models used for booking
// extraction and reply generation.
package nlu

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("nlu: empty response")

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
}

type Request struct {
	System    string
	Messages  []Message
	MaxTokens int32
	// Temperature below zero leaves the provider default.
	Temperature float32
	// JSON asks the provider for a bare JSON body where it supports it.
	JSON bool
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Client completes a chat request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// WithTimeout bounds every Complete call to d.
func WithTimeout(inner Client, d time.Duration) Client {
	if d <= 0 {
		return inner
	}
	return &timeoutClient{inner: inner, timeout: d}
}

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

func (c *timeoutClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.inner.Complete(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Response{}, fmt.Errorf("nlu: timed out after %s: %w", c.timeout, err)
	}
	return resp, err
}
