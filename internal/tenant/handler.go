package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// Refresher reloads one tenant profile into the directory cache.
type Refresher interface {
	Refresh(ctx context.Context, id uuid.UUID) (*Profile, error)
}

// Handler serves tenant cache administration.
type Handler struct {
	cache  Refresher
	logger *logging.Logger
}

// NewHandler creates the tenant admin handler.
func NewHandler(cache Refresher, logger *logging.Logger) *Handler {
	if cache == nil {
		panic("tenant: refresher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{cache: cache, logger: logger}
}

// Refresh reloads a tenant after its profile was edited in the database.
// POST /admin/tenants/{tenantID}/cache/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, `{"error": "invalid tenant id"}`, http.StatusBadRequest)
		return
	}

	profile, err := h.cache.Refresh(r.Context(), tenantID)
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, `{"error": "tenant not found"}`, http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to refresh tenant", "tenant_id", tenantID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	h.logger.Info("tenant cache refreshed", "tenant_id", tenantID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"tenant_id":   profile.ID.String(),
		"name":        profile.Name,
		"routing_key": profile.RoutingKey,
	}); err != nil {
		h.logger.Error("failed to encode tenant", "tenant_id", tenantID, "error", err)
	}
}
