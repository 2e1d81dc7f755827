package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-concierge/internal/schedule"
)

type fakeLister struct {
	appts    []Appointment
	err      error
	gotDate  time.Time
	gotOwner uuid.UUID
}

func (f *fakeLister) ListOn(_ context.Context, tenantID uuid.UUID, date time.Time) ([]Appointment, error) {
	f.gotOwner, f.gotDate = tenantID, date
	return f.appts, f.err
}

func serveList(h *Handler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/{tenantID}/appointments", h.List)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandlerList(t *testing.T) {
	tenantID := uuid.New()
	lister := &fakeLister{appts: []Appointment{{
		ID:              uuid.New(),
		TenantID:        tenantID,
		CustomerAddress: "33611111111",
		Date:            schedule.MustParseDate("2025-06-10"),
		Time:            schedule.MustParseTimeOfDay("14:00"),
		Status:          StatusPending,
	}}}
	h := NewHandler(lister, nil)

	rec := serveList(h, "/"+tenantID.String()+"/appointments?date=2025-06-10")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Date         string `json:"date"`
		Appointments []struct {
			Time   string `json:"time"`
			Status string `json:"status"`
		} `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-06-10", body.Date)
	require.Len(t, body.Appointments, 1)
	assert.Equal(t, "14:00", body.Appointments[0].Time)
	assert.Equal(t, "pending", body.Appointments[0].Status)
	assert.Equal(t, tenantID, lister.gotOwner)
}

func TestHandlerListRejectsBadInput(t *testing.T) {
	h := NewHandler(&fakeLister{}, nil)

	for _, target := range []string{
		"/not-a-uuid/appointments?date=2025-06-10",
		"/" + uuid.NewString() + "/appointments?date=10/06/2025",
	} {
		rec := serveList(h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandlerListStoreFailure(t *testing.T) {
	h := NewHandler(&fakeLister{err: errors.New("db down")}, nil)
	rec := serveList(h, "/"+uuid.NewString()+"/appointments?date=2025-06-10")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
