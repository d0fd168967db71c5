package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"outletdedup/internal/dedup/models"
	"outletdedup/pkg/platform/httputil"
	"outletdedup/pkg/platform/middleware/metadata"
	"outletdedup/pkg/requestcontext"
)

// Service defines the run operations exposed over HTTP.
type Service interface {
	Run(ctx context.Context) (*models.Summary, error)
	LatestSummary(ctx context.Context) (*models.Summary, error)
}

// Handler wires the admin run endpoints to the dedup service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts run endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/runs", h.HandleRun)
	r.Get("/runs/latest", h.HandleLatest)
}

// HandleRun handles POST /runs. The run executes within the request and the
// response carries its summary.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	summary, err := h.service.Run(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "dedup run request failed",
			"request_id", requestID,
			"client_ip", metadata.GetClientIP(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "dedup run request completed",
		"request_id", requestID,
		"client_ip", metadata.GetClientIP(ctx),
		"run_id", summary.RunID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleLatest handles GET /runs/latest.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LatestSummary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}
