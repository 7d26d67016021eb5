package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seriosity/internal/interview/models"
	"seriosity/internal/interview/service"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/platform/httputil"
	"seriosity/pkg/platform/middleware/auth"
	"seriosity/pkg/requestcontext"
)

// maxAnswerBytes bounds a single recorded answer.
const maxAnswerBytes = 50 << 20

// Service defines the interview operations the handler exposes.
type Service interface {
	StartInterview(ctx context.Context, tenantID id.TenantID) (*models.Interview, error)
	GetInterview(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error)
	SubmitAnswer(ctx context.Context, interviewID id.InterviewID, questionID id.QuestionID, in service.AnswerMedia) (*models.Interview, error)
	ProcessInterview(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error)
	ReprocessInterview(ctx context.Context, interviewID id.InterviewID) (*models.Interview, error)
}

// Handler wires interview endpoints to the interview service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an interview handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts interview endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/interviews", h.HandleStart)
	r.Route("/interviews/{interviewID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/answers/{questionID}", h.HandleSubmitAnswer)
		r.Post("/process", h.HandleProcess)
		r.Post("/reprocess", h.HandleReprocess)
	})
}

// HandleStart handles POST /interviews. Tenants start their own interview;
// operators name the tenant with ?tenant_id=.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var tenantID id.TenantID
	if actor.Role == requestcontext.RoleTenant && !actor.UserID.IsNil() {
		tenantID = id.TenantID(actor.UserID)
	} else {
		if err := auth.RequireRole(actor, requestcontext.RoleOperator); err != nil {
			httputil.WriteError(w, err)
			return
		}
		parsed, err := id.ParseTenantID(r.URL.Query().Get("tenant_id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		tenantID = parsed
	}

	iv, err := h.service.StartInterview(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "start interview failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInterviewResponse(iv))
}

// HandleGet handles GET /interviews/{interviewID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorizedInterview(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInterviewResponse(iv))
}

// HandleSubmitAnswer handles PUT /interviews/{interviewID}/answers/{questionID}.
// The body is the raw answer: text/plain for written answers, audio/* or
// video/* for recordings.
func (h *Handler) HandleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	questionID, err := id.ParseQuestionID(chi.URLParam(r, "questionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	iv, ok := h.authorizedInterview(w, r)
	if !ok {
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "Content-Type header is required"))
		return
	}
	if r.ContentLength == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "answer body is empty"))
		return
	}

	updated, err := h.service.SubmitAnswer(ctx, iv.ID, questionID, service.AnswerMedia{
		ContentType: contentType,
		Filename:    r.URL.Query().Get("filename"),
		Body:        http.MaxBytesReader(w, r.Body, maxAnswerBytes),
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "answer exceeds 50MB"))
			return
		}
		h.logFailure(ctx, "submit answer failed", iv.ID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInterviewResponse(updated))
}

// HandleProcess handles POST /interviews/{interviewID}/process. It runs the
// whole pipeline synchronously.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	iv, ok := h.authorizedInterview(w, r)
	if !ok {
		return
	}
	processed, err := h.service.ProcessInterview(ctx, iv.ID)
	if err != nil {
		h.logFailure(ctx, "process interview failed", iv.ID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInterviewResponse(processed))
}

// HandleReprocess handles POST /interviews/{interviewID}/reprocess.
func (h *Handler) HandleReprocess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	iv, ok := h.authorizedInterview(w, r)
	if !ok {
		return
	}
	restarted, err := h.service.ReprocessInterview(ctx, iv.ID)
	if err != nil {
		h.logFailure(ctx, "reprocess interview failed", iv.ID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInterviewResponse(restarted))
}

// authorizedInterview loads the interview named in the path and checks that
// the actor is its tenant or an operator.
func (h *Handler) authorizedInterview(w http.ResponseWriter, r *http.Request) (*models.Interview, bool) {
	ctx := r.Context()
	interviewID, err := id.ParseInterviewID(chi.URLParam(r, "interviewID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	actor := requestcontext.Actor(ctx)
	if actor.UserID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return nil, false
	}
	iv, err := h.service.GetInterview(ctx, interviewID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if err := auth.RequireTenantOrOperator(actor, iv.TenantID); err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return iv, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, interviewID id.InterviewID, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"interview_id", interviewID,
		"error", err,
	)
}
