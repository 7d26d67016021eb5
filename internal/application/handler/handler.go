package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seriosity/internal/application/models"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/httputil"
	"seriosity/pkg/platform/middleware/auth"
	"seriosity/pkg/requestcontext"
)

// Service defines the application operations the handler exposes.
type Service interface {
	RecordTenantInterest(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error)
	RecordLandlordDecision(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID, decision models.Decision) (*models.Application, error)
	GetApplicationStatus(ctx context.Context, propertyID id.PropertyID, tenantID id.TenantID) (*models.Application, error)
	PropertyLandlord(ctx context.Context, propertyID id.PropertyID) (id.LandlordID, error)
}

// Handler wires application endpoints to the application service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an application handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts application endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/properties/{propertyID}", func(r chi.Router) {
		r.Post("/interest", h.HandleInterest)
		r.Get("/applications/{tenantID}", h.HandleGet)
		r.Put("/applications/{tenantID}/decision", h.HandleDecision)
	})
}

// HandleInterest handles POST /properties/{propertyID}/interest. Tenants
// express their own interest; operators name the tenant with ?tenant_id=.
func (h *Handler) HandleInterest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := requestcontext.Actor(ctx)

	var tenantID id.TenantID
	if actor.Role == requestcontext.RoleTenant && !actor.UserID.IsNil() {
		tenantID = id.TenantID(actor.UserID)
	} else {
		if err := auth.RequireRole(actor, requestcontext.RoleOperator); err != nil {
			httputil.WriteError(w, err)
			return
		}
		if tenantID, err = id.ParseTenantID(r.URL.Query().Get("tenant_id")); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	app, err := h.service.RecordTenantInterest(ctx, propertyID, tenantID)
	if err != nil {
		h.logFailure(ctx, "record tenant interest failed", propertyID, tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

// HandleDecision handles PUT /properties/{propertyID}/applications/{tenantID}/decision.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, tenantID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	landlordID, err := h.service.PropertyLandlord(ctx, propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := requestcontext.Actor(ctx)
	if !isOperator(actor) && !isLandlord(actor, landlordID) {
		httputil.WriteError(w, forbiddenOrUnauthorized(actor))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	app, err := h.service.RecordLandlordDecision(ctx, propertyID, tenantID, req.parsed)
	if err != nil {
		h.logFailure(ctx, "record landlord decision failed", propertyID, tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

// HandleGet handles GET /properties/{propertyID}/applications/{tenantID}.
// The tenant, the property's landlord and operators may read it.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, tenantID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	actor := requestcontext.Actor(ctx)
	if actor.UserID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if actor.Role == requestcontext.RoleLandlord {
		landlordID, err := h.service.PropertyLandlord(ctx, propertyID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if !isLandlord(actor, landlordID) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "property belongs to another landlord"))
			return
		}
	} else if err := auth.RequireTenantOrOperator(actor, tenantID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	app, err := h.service.GetApplicationStatus(ctx, propertyID, tenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationResponse(app))
}

func (h *Handler) pathIDs(w http.ResponseWriter, r *http.Request) (id.PropertyID, id.TenantID, bool) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PropertyID{}, id.TenantID{}, false
	}
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PropertyID{}, id.TenantID{}, false
	}
	return propertyID, tenantID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, propertyID id.PropertyID, tenantID id.TenantID, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"property_id", propertyID,
		"tenant_id", tenantID,
		"error", err,
	)
}

func isOperator(actor requestcontext.AuthenticatedActor) bool {
	return actor.Role == requestcontext.RoleOperator && !actor.UserID.IsNil()
}

func isLandlord(actor requestcontext.AuthenticatedActor, landlordID id.LandlordID) bool {
	return actor.Role == requestcontext.RoleLandlord && actor.UserID == id.UserID(landlordID)
}

func forbiddenOrUnauthorized(actor requestcontext.AuthenticatedActor) error {
	if actor.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return dErrors.New(dErrors.CodeForbidden, "only the property's landlord can decide")
}
