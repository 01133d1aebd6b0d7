package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"proptoken/internal/activity/models"
	dErrors "proptoken/pkg/domain-errors"
	"proptoken/pkg/platform/httputil"
	"proptoken/pkg/platform/middleware/admin"
	"proptoken/pkg/requestcontext"
)

// Service is the read side of the activity recorder.
type Service interface {
	Feed(limit, offset int) models.FeedPage
	ByType(t models.EventType, limit int) []models.Event
	AssetTimeline(assetName string) []models.Event
	Summary() models.Summary
	ExportJSON() ([]byte, error)
	LogMintingInitiated(ctx context.Context, m models.Minting) models.Event
	LogMintingConfirmed(ctx context.Context, m models.Minting) models.Event
	Clear(ctx context.Context)
}

// Handler wires activity feed endpoints to the recorder.
type Handler struct {
	service    Service
	logger     *slog.Logger
	adminToken string
}

// New builds the handler. Operator routes are mounted only when adminToken
// is set.
func New(service Service, logger *slog.Logger, adminToken string) *Handler {
	return &Handler{service: service, logger: logger, adminToken: adminToken}
}

// Register mounts activity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/activity/feed", h.HandleFeed)
	r.Get("/activity/types/{type}", h.HandleByType)
	r.Get("/activity/assets/{assetName}", h.HandleAssetTimeline)
	r.Get("/activity/summary", h.HandleSummary)
	r.Get("/activity/export", h.HandleExport)

	if h.adminToken == "" {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/activity/minting", h.HandleRecordMinting)
		r.Delete("/activity", h.HandleClear)
	})
}

// HandleFeed handles GET /activity/feed?limit&offset.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Feed(limit, offset))
}

// HandleByType handles GET /activity/types/{type}?limit.
func (h *Handler) HandleByType(w http.ResponseWriter, r *http.Request) {
	eventType, ok := models.ParseEventType(chi.URLParam(r, "type"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown event type"))
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": h.service.ByType(eventType, limit)})
}

// HandleAssetTimeline handles GET /activity/assets/{assetName}.
func (h *Handler) HandleAssetTimeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "assetName")
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"asset_name": name,
		"events":     h.service.AssetTimeline(name),
	})
}

func (h *Handler) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Summary())
}

// HandleExport streams the whole retained feed as a JSON attachment.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := h.service.ExportJSON()
	if err != nil {
		h.logError(ctx, "activity export failed", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "export failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="activity.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleRecordMinting handles POST /activity/minting from the tokenization step.
func (h *Handler) HandleRecordMinting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RecordMintingRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	var ev models.Event
	switch req.Stage {
	case StageInitiated:
		ev = h.service.LogMintingInitiated(ctx, req.ToDomain())
	case StageConfirmed:
		ev = h.service.LogMintingConfirmed(ctx, req.ToDomain())
	}
	httputil.WriteJSON(w, http.StatusCreated, ev)
}

// HandleClear handles DELETE /activity.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.service.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger != nil {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// intParam parses an optional non-negative integer query parameter. Absent is 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a non-negative integer")
	}
	return n, nil
}
