package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"proptoken/internal/submission/models"
	"proptoken/internal/submission/service"
	id "proptoken/pkg/domain"
	dErrors "proptoken/pkg/domain-errors"
	"proptoken/pkg/platform/httputil"
	"proptoken/pkg/platform/middleware/auth"
	"proptoken/pkg/requestcontext"
)

// Service is the submission pipeline as seen by the transport.
type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.Submission, *service.Run, error)
	Verify(ctx context.Context, subID id.SubmissionID) (*service.Run, error)
	Get(ctx context.Context, subID id.SubmissionID) (*models.Details, error)
	List(ctx context.Context, limit int) ([]*models.Submission, error)
	Cancel(ctx context.Context, subID id.SubmissionID) error
	EligibleAsset(ctx context.Context, subID id.SubmissionID) (*models.EligibleAsset, error)
}

// Handler exposes submission and eligible asset endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	jwtValidator auth.JWTValidator
	limits       []func(http.Handler) http.Handler
}

// New builds the handler. limits run after authentication on the mutating
// routes, so they can key on the submitter.
func New(service Service, logger *slog.Logger, jwtValidator auth.JWTValidator, limits ...func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		jwtValidator: jwtValidator,
		limits:       limits,
	}
}

// Register mounts the routes. Mutating routes require a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/submissions", h.HandleList)
	r.Get("/submissions/{id}", h.HandleGet)
	r.Get("/assets/{submissionID}", h.HandleEligibleAsset)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.jwtValidator, h.logger))
		r.Use(h.limits...)
		r.Post("/submissions", h.HandleCreate)
		r.Post("/submissions/{id}/verify", h.HandleVerify)
		r.Post("/submissions/{id}/cancel", h.HandleCancel)
	})
}

// HandleCreate handles POST /submissions. The run continues after the
// response; poll GET /submissions/{id} for progress.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	submitterID := requestcontext.SubmitterID(ctx)
	if submitterID == "" {
		h.logger.ErrorContext(ctx, "submitter missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateSubmissionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	in := req.ToDomain(submitterID)
	if in.WalletAddress == "" {
		in.WalletAddress = requestcontext.WalletAddress(ctx)
	}
	sub, _, err := h.service.Create(ctx, in)
	if err != nil {
		attrs := []any{"request_id", requestID, "error", err}
		if sub != nil {
			attrs = append(attrs, "submission_id", sub.ID)
		}
		h.logger.ErrorContext(ctx, "failed to create submission", attrs...)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submission created",
		"request_id", requestID,
		"submission_id", sub.ID,
	)
	w.Header().Set("Location", "/submissions/"+sub.ID.String())
	httputil.WriteJSON(w, http.StatusAccepted, CreateSubmissionResponse{
		SubmissionID: sub.ID.String(),
		Status:       sub.Status,
		CreatedAt:    sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleVerify handles POST /submissions/{id}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, ok := h.submissionID(w, r, "id")
	if !ok {
		return
	}
	run, err := h.service.Verify(ctx, subID)
	if err != nil {
		h.logFailure(ctx, "failed to start verification run", subID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, RunResponse{
		SubmissionID: subID.String(),
		Status:       run.Status(),
	})
}

// HandleCancel handles POST /submissions/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, ok := h.submissionID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Cancel(ctx, subID); err != nil {
		h.logFailure(ctx, "failed to cancel verification run", subID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"submission_id": subID.String(),
		"cancelled":     true,
	})
}

// HandleGet handles GET /submissions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, ok := h.submissionID(w, r, "id")
	if !ok {
		return
	}
	details, err := h.service.Get(ctx, subID)
	if err != nil {
		h.logFailure(ctx, "failed to load submission", subID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleList handles GET /submissions?limit.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	subs, err := h.service.List(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list submissions",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// HandleEligibleAsset handles GET /assets/{submissionID}.
func (h *Handler) HandleEligibleAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subID, ok := h.submissionID(w, r, "submissionID")
	if !ok {
		return
	}
	asset, err := h.service.EligibleAsset(ctx, subID)
	if err != nil {
		h.logFailure(ctx, "failed to load eligible asset", subID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, asset)
}

func (h *Handler) submissionID(w http.ResponseWriter, r *http.Request, param string) (id.SubmissionID, bool) {
	subID, err := id.ParseSubmissionID(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SubmissionID{}, false
	}
	return subID, true
}

// logFailure logs server-side failures; client errors are only answered.
func (h *Handler) logFailure(ctx context.Context, msg string, subID id.SubmissionID, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"submission_id", subID,
		"error", err,
	)
}
