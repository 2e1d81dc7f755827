package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-concierge/pkg/logging"
)

func TestSetupMetricsExposesPipelineMetrics(t *testing.T) {
	handler, m := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveInbound("whatsapp", "accepted")
	m.ObserveOutcome("committed")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking_gateway_inbound_webhook_total")
	assert.Contains(t, rec.Body.String(), "booking_coordinator_outcomes_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type countingPruner struct{ calls chan time.Duration }

func (p countingPruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	p.calls <- olderThan
	return 0, nil
}

func TestPruneProcessedEventsStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pruneProcessedEvents(ctx, countingPruner{calls: make(chan time.Duration, 1)}, logging.New("error"))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}
