package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"seriosity/internal/evidence/models"
	"seriosity/internal/media"
	"seriosity/internal/score"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/httputil"
	"seriosity/pkg/platform/middleware/auth"
	"seriosity/pkg/requestcontext"
)

// maxDocumentBytes bounds a single document upload.
const maxDocumentBytes = 20 << 20

// Service defines the evidence operations the handler exposes.
type Service interface {
	GetScore(ctx context.Context, tenantID id.TenantID) (score.StoredScore, error)
	ReconcileScore(ctx context.Context, tenantID id.TenantID) error
	SetIdentityVerified(ctx context.Context, tenantID id.TenantID, verified bool) (*models.TenantEvidence, error)
	UploadDocument(ctx context.Context, tenantID id.TenantID, kind models.DocumentKind, key, contentType string, body io.Reader) (models.Document, error)
	RemoveDocument(ctx context.Context, tenantID id.TenantID, documentID id.DocumentID) error
	SetDocumentVerified(ctx context.Context, tenantID id.TenantID, documentID id.DocumentID, verified bool) (models.Document, error)
	TouchProfile(ctx context.Context, tenantID id.TenantID) (*models.TenantEvidence, error)
}

// Handler wires evidence and score endpoints to the evidence service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an evidence handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts evidence endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Get("/score", h.HandleGetScore)
		r.Get("/score/reconcile", h.HandleReconcileScore)
		r.Put("/identity", h.HandleSetIdentity)
		r.Post("/documents", h.HandleUploadDocument)
		r.Delete("/documents/{documentID}", h.HandleRemoveDocument)
		r.Put("/documents/{documentID}/verification", h.HandleSetDocumentVerified)
		r.Put("/profile", h.HandleTouchProfile)
	})
}

// HandleGetScore handles GET /tenants/{tenantID}/score. Tenants read their
// own score; landlords read applicants' scores.
func (h *Handler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	actor := requestcontext.Actor(ctx)
	if actor.Role != requestcontext.RoleLandlord {
		if err := auth.RequireTenantOrOperator(actor, tenantID); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	stored, err := h.service.GetScore(ctx, tenantID)
	if err != nil {
		h.logFailure(ctx, "get score failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toScoreResponse(tenantID, stored))
}

// HandleReconcileScore handles GET /tenants/{tenantID}/score/reconcile.
func (h *Handler) HandleReconcileScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	if err := auth.RequireRole(requestcontext.Actor(ctx), requestcontext.RoleOperator); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ReconcileScore(ctx, tenantID); err != nil {
		h.logFailure(ctx, "score reconciliation failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReconcileResponse{TenantID: tenantID, Status: "consistent"})
}

// HandleSetIdentity handles PUT /tenants/{tenantID}/identity.
func (h *Handler) HandleSetIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	if err := auth.RequireRole(requestcontext.Actor(ctx), requestcontext.RoleOperator); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ev, err := h.service.SetIdentityVerified(ctx, tenantID, *req.Verified)
	if err != nil {
		h.logFailure(ctx, "set identity verification failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEvidenceResponse(ev))
}

// HandleUploadDocument handles POST /tenants/{tenantID}/documents?kind=...
// The request body is the raw file; Content-Type describes it.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	if err := auth.RequireTenantOrOperator(requestcontext.Actor(ctx), tenantID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind := models.DocumentKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if !kind.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "kind must be income or reference"))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "Content-Type header is required"))
		return
	}
	if r.ContentLength == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "document body is empty"))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	key := media.NewKey("documents/"+tenantID.String(), r.URL.Query().Get("filename"))
	doc, err := h.service.UploadDocument(ctx, tenantID, kind, key, contentType, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "document exceeds 20MB"))
			return
		}
		h.logFailure(ctx, "document upload failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"document_id", doc.ID,
		"kind", doc.Kind,
	)
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

// HandleRemoveDocument handles DELETE /tenants/{tenantID}/documents/{documentID}.
func (h *Handler) HandleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := auth.RequireTenantOrOperator(requestcontext.Actor(ctx), tenantID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RemoveDocument(ctx, tenantID, documentID); err != nil {
		h.logFailure(ctx, "document removal failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetDocumentVerified handles
// PUT /tenants/{tenantID}/documents/{documentID}/verification.
func (h *Handler) HandleSetDocumentVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := auth.RequireRole(requestcontext.Actor(ctx), requestcontext.RoleOperator); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	doc, err := h.service.SetDocumentVerified(ctx, tenantID, documentID, *req.Verified)
	if err != nil {
		h.logFailure(ctx, "document verification failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleTouchProfile handles PUT /tenants/{tenantID}/profile, called whenever
// the tenant saves their profile.
func (h *Handler) HandleTouchProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := h.tenantParam(w, r)
	if !ok {
		return
	}
	if err := auth.RequireTenantOrOperator(requestcontext.Actor(ctx), tenantID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	ev, err := h.service.TouchProfile(ctx, tenantID)
	if err != nil {
		h.logFailure(ctx, "profile update failed", tenantID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEvidenceResponse(ev))
}

func (h *Handler) tenantParam(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TenantID{}, false
	}
	return tenantID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, tenantID id.TenantID, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"error", err,
	)
}
