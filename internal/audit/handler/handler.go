// Package handler exposes the audit and security logs to super admins.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/audit"
	"greenctf/pkg/platform/httputil"
	"greenctf/pkg/platform/middleware/admin"
	"greenctf/pkg/requestcontext"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type securityEventsResponse struct {
	Success bool                  `json:"success"`
	Events  []audit.SecurityEvent `json:"events"`
}

type activityResponse struct {
	Success bool                   `json:"success"`
	Records []audit.ActivityRecord `json:"records"`
}

type Handler struct {
	reader audit.Reader
	logger *slog.Logger
}

func New(reader audit.Reader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reader: reader, logger: logger}
}

// Register mounts the inspection routes. The caller must have applied
// admin.RequireAdmin; RequireRole is applied here.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireRole("super_admin"))
		r.Get("/api/admin/audit/security-events", h.HandleSecurityEvents)
		r.Get("/api/admin/audit/activity", h.HandleActivity)
	})
}

// HandleSecurityEvents implements GET /api/admin/audit/security-events?limit=N.
func (h *Handler) HandleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.reader.RecentSecurityEvents(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list security events",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list security events"))
		return
	}
	if events == nil {
		events = []audit.SecurityEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, securityEventsResponse{Success: true, Events: events})
}

// HandleActivity implements GET /api/admin/audit/activity?limit=N.
func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.reader.RecentActivity(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list admin activity",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list admin activity"))
		return
	}
	if records == nil {
		records = []audit.ActivityRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, activityResponse{Success: true, Records: records})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}
