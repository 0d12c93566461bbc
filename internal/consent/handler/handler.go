package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/platform/middleware"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
	"consentbroker/pkg/platform/httputil"
)

// Service defines the consent operations the HTTP surface calls.
type Service interface {
	AttemptAccess(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (*models.AccessResult, error)
	ReRequest(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (*models.AccessResult, error)
	Retrieve(ctx context.Context, requesterID id.RequesterID, itemID id.ItemID) (*models.RetrievalResult, error)
	Decide(ctx context.Context, ownerID id.OwnerID, consentID id.ConsentID, params models.DecideParams) (*models.DecideResult, error)
	ListPendingForOwner(ctx context.Context, ownerID id.OwnerID) ([]models.PendingConsent, error)
	HistoryForRequester(ctx context.Context, requesterID id.RequesterID) ([]models.HistoryEntry, error)
	HistoryForOwner(ctx context.Context, ownerID id.OwnerID) ([]models.HistoryEntry, error)
}

// Handler handles seeker and provider consent endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register mounts the seeker and provider route groups. Callers install
// authentication in front; each group enforces its own role.
func (h *Handler) Register(r chi.Router) {
	r.Route("/seeker", func(r chi.Router) {
		r.Use(middleware.RequireRole(h.logger, models.RoleSeeker))
		r.Post("/items/{itemID}/access", h.HandleAccess)
		r.Post("/items/{itemID}/rerequest", h.HandleReRequest)
		r.Get("/items/{itemID}/content", h.HandleContent)
		r.Get("/history", h.HandleSeekerHistory)
	})
	r.Route("/provider", func(r chi.Router) {
		r.Use(middleware.RequireRole(h.logger, models.RoleProvider))
		r.Get("/consents/pending", h.HandlePending)
		r.With(middleware.ContentTypeJSON).Post("/consents/{consentID}/decision", h.HandleDecision)
		r.Get("/history", h.HandleProviderHistory)
	})
}

// HandleAccess answers 200 with the payload on a grant, 202 while pending and
// 403 on a denial. Non-grant bodies carry the status for display.
func (h *Handler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	requesterID, itemID, ok := h.seekerTarget(w, r)
	if !ok {
		return
	}

	res, err := h.consent.AttemptAccess(ctx, requesterID, itemID)
	if err != nil {
		h.logFailure(ctx, "access attempt failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, verdictStatus(res.Verdict), toAccessResponse(res))
}

// HandleReRequest reopens a terminal consent; the reply is 202 pending.
func (h *Handler) HandleReRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	requesterID, itemID, ok := h.seekerTarget(w, r)
	if !ok {
		return
	}

	res, err := h.consent.ReRequest(ctx, requesterID, itemID)
	if err != nil {
		h.logFailure(ctx, "re-request failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "consent re-requested",
		"request_id", requestID,
		"consent_id", res.ConsentID.String(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, toAccessResponse(res))
}

// HandleContent streams the bytes behind an indirect item. The released key
// and IV travel in headers so the body stays the raw ciphertext.
func (h *Handler) HandleContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	requesterID, itemID, ok := h.seekerTarget(w, r)
	if !ok {
		return
	}

	res, err := h.consent.Retrieve(ctx, requesterID, itemID)
	if err != nil {
		h.logFailure(ctx, "content retrieval failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	if res.Verdict != models.VerdictGranted {
		httputil.WriteJSON(w, verdictStatus(res.Verdict), toRetrievalResponse(res))
		return
	}

	header := w.Header()
	header.Set("Content-Type", "application/octet-stream")
	header.Set("Content-Length", strconv.Itoa(len(res.Content)))
	header.Set(HeaderConsentID, res.ConsentID.String())
	header.Set(HeaderRemainingCount, strconv.Itoa(res.RemainingCount))
	if res.ReleasedKey != "" {
		header.Set(HeaderReleasedKey, res.ReleasedKey)
	}
	if res.IV != "" {
		header.Set(HeaderIV, res.IV)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Content); err != nil {
		h.logger.WarnContext(ctx, "content write aborted",
			"request_id", requestID,
			"error", err,
		)
	}
}

func (h *Handler) HandleSeekerHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	requesterID, err := id.ParseRequesterID(principal.EntityID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid principal"))
		return
	}

	entries, err := h.consent.HistoryForRequester(ctx, requesterID)
	if err != nil {
		h.logFailure(ctx, "seeker history failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(entries))
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	ownerID, ok := h.ownerPrincipal(w, r)
	if !ok {
		return
	}

	pending, err := h.consent.ListPendingForOwner(ctx, ownerID)
	if err != nil {
		h.logFailure(ctx, "pending list failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPendingResponse(pending))
}

func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	ownerID, ok := h.ownerPrincipal(w, r)
	if !ok {
		return
	}
	consentID, err := id.ParseConsentID(chi.URLParam(r, "consentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.consent.Decide(ctx, ownerID, consentID, req.ToParams())
	if err != nil {
		h.logFailure(ctx, "owner decision failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(res))
}

func (h *Handler) HandleProviderHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	ownerID, ok := h.ownerPrincipal(w, r)
	if !ok {
		return
	}

	entries, err := h.consent.HistoryForOwner(ctx, ownerID)
	if err != nil {
		h.logFailure(ctx, "provider history failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(entries))
}

// principal reads the authenticated caller. Its absence behind the auth
// middleware is a wiring bug and reported as an internal error.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "principal missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return middleware.Principal{}, false
	}
	return principal, true
}

func (h *Handler) ownerPrincipal(w http.ResponseWriter, r *http.Request) (id.OwnerID, bool) {
	principal, ok := h.principal(w, r)
	if !ok {
		return id.OwnerID{}, false
	}
	ownerID, err := id.ParseOwnerID(principal.EntityID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid principal"))
		return id.OwnerID{}, false
	}
	return ownerID, true
}

func (h *Handler) seekerTarget(w http.ResponseWriter, r *http.Request) (id.RequesterID, id.ItemID, bool) {
	principal, ok := h.principal(w, r)
	if !ok {
		return id.RequesterID{}, id.ItemID{}, false
	}
	requesterID, err := id.ParseRequesterID(principal.EntityID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid principal"))
		return id.RequesterID{}, id.ItemID{}, false
	}
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return id.RequesterID{}, id.ItemID{}, false
	}
	return requesterID, itemID, true
}

// logFailure logs retryable and internal failures as errors and caller
// mistakes as warnings.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	level := slog.LevelWarn
	if dErrors.IsRetryable(err) || dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg, "request_id", requestID, "error", err)
}

func verdictStatus(v models.Verdict) int {
	switch v {
	case models.VerdictGranted:
		return http.StatusOK
	case models.VerdictPending:
		return http.StatusAccepted
	default:
		return http.StatusForbidden
	}
}
