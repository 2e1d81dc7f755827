package nlu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	resp  Response
	err   error
	calls int
	block bool
}

func (s *scriptedClient) Complete(ctx context.Context, _ Request) (Response, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	return s.resp, s.err
}

func TestFallbackUsesPrimaryFirst(t *testing.T) {
	primary := &scriptedClient{resp: Response{Text: "primary"}}
	fallback := &scriptedClient{resp: Response{Text: "fallback"}}

	resp, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, fallback.calls)
}

func TestFallbackOnPrimaryError(t *testing.T) {
	primary := &scriptedClient{err: errors.New("quota")}
	fallback := &scriptedClient{resp: Response{Text: "fallback"}}

	resp, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
}

func TestFallbackBothFail(t *testing.T) {
	fbErr := errors.New("bedrock down")
	_, err := NewFallbackClient(&scriptedClient{err: errors.New("quota")}, &scriptedClient{err: fbErr}, nil).
		Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, fbErr)
}

func TestFallbackWithoutSecondary(t *testing.T) {
	pErr := errors.New("quota")
	_, err := NewFallbackClient(&scriptedClient{err: pErr}, nil, nil).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, pErr)
}

func TestWithTimeoutCancelsSlowCalls(t *testing.T) {
	slow := &scriptedClient{block: true}
	start := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutZeroIsPassthrough(t *testing.T) {
	inner := &scriptedClient{}
	assert.Same(t, Client(inner), WithTimeout(inner, 0))
}

func TestGeminiTurns(t *testing.T) {
	history, last, err := geminiTurns([]Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi, how can I help?"},
		{Role: RoleUser, Content: "  book me tomorrow  "},
		{Role: RoleAssistant, Content: ""},
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "book me tomorrow", last)

	_, _, err = geminiTurns(nil)
	assert.Error(t, err)
}
