package admin

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Reconciler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/platform/middleware"
	"consentbroker/internal/reconcile"
	id "consentbroker/pkg/domain"
	dErrors "consentbroker/pkg/domain-errors"
	"consentbroker/pkg/platform/httputil"
	"consentbroker/pkg/validation"
)

// Reconciler applies an owner activity change.
type Reconciler interface {
	SetOwnerActive(ctx context.Context, ownerID id.OwnerID, active bool) (*reconcile.Result, error)
}

// Handler handles operator endpoints.
type Handler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

func New(reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Register mounts the admin routes behind the admin role.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(h.logger, models.RoleAdmin))
		r.With(middleware.ContentTypeJSON).Put("/owners/{ownerID}/activity", h.HandleSetOwnerActivity)
	})
}

// ActivityRequest toggles an owner's participation.
type ActivityRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (r *ActivityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type ActivityResponse struct {
	OwnerID         string `json:"owner_id"`
	Active          bool   `json:"active"`
	ConsentsChanged int    `json:"consents_changed"`
}

// HandleSetOwnerActivity marks an owner active or inactive and mirrors the
// flag onto every consent the owner holds.
func (h *Handler) HandleSetOwnerActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	ownerID, err := id.ParseOwnerID(chi.URLParam(r, "ownerID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid owner id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActivityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.reconciler.SetOwnerActive(ctx, ownerID, *req.Active)
	if err != nil {
		h.logger.ErrorContext(ctx, "owner reconciliation failed",
			"error", err,
			"request_id", requestID,
			"owner_id", ownerID.String(),
		)
		httputil.WriteError(w, err)
		return
	}

	operator := ""
	if p, ok := middleware.GetPrincipal(ctx); ok {
		operator = p.EntityID
	}
	h.logger.InfoContext(ctx, "owner activity changed",
		"request_id", requestID,
		"operator", operator,
		"owner_id", res.OwnerID.String(),
		"active", res.Active,
		"consents_changed", res.ConsentsChanged,
	)

	httputil.WriteJSON(w, http.StatusOK, &ActivityResponse{
		OwnerID:         res.OwnerID.String(),
		Active:          res.Active,
		ConsentsChanged: res.ConsentsChanged,
	})
}
