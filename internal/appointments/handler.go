package appointments

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/booking-concierge/internal/schedule"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// Lister is the read side used by the admin handler.
type Lister interface {
	ListOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]Appointment, error)
}

// Handler serves the admin appointment listing.
type Handler struct {
	store  Lister
	logger *logging.Logger
}

// NewHandler creates the admin appointment handler.
func NewHandler(store Lister, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

type appointmentView struct {
	ID              string    `json:"id"`
	CustomerAddress string    `json:"customer_address"`
	CustomerName    string    `json:"customer_name,omitempty"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Service         string    `json:"service,omitempty"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	Archived        bool      `json:"archived"`
	CreatedAt       time.Time `json:"created_at"`
}

// List returns a tenant's appointments for one day.
// GET /admin/tenants/{tenantID}/appointments?date=YYYY-MM-DD
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, `{"error": "invalid tenant id"}`, http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}

	appts, err := h.store.ListOn(r.Context(), tenantID, date)
	if err != nil {
		h.logger.Error("failed to list appointments", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	views := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		views = append(views, appointmentView{
			ID:              a.ID.String(),
			CustomerAddress: a.CustomerAddress,
			CustomerName:    a.CustomerName,
			Date:            schedule.FormatDate(a.Date),
			Time:            a.Time.String(),
			Service:         a.Service,
			Status:          a.Status,
			Notes:           a.Notes,
			Archived:        a.Archived,
			CreatedAt:       a.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"tenant_id":    tenantID.String(),
		"date":         schedule.FormatDate(date),
		"appointments": views,
	}); err != nil {
		h.logger.Error("failed to encode appointments", "tenant_id", tenantID, "error", err)
	}
}
