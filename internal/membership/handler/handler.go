// Package handler exposes the membership lifecycle over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
	"orgapi/pkg/platform/httputil"
	"orgapi/pkg/platform/middleware/metadata"
	"orgapi/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Service is the membership engine as used by the HTTP layer.
type Service interface {
	Apply(ctx context.Context, req *models.ApplyRequest) (*models.Applicant, error)
	Accept(ctx context.Context, applicantID id.ApplicantID) (*models.Applicant, error)
	Reject(ctx context.Context, applicantID id.ApplicantID, req *models.RejectRequest) (*models.Applicant, error)
	RevertToPending(ctx context.Context, applicantID id.ApplicantID) (*models.Applicant, error)
	Delete(ctx context.Context, applicantID id.ApplicantID) error
	GetApplication(ctx context.Context, applicantID id.ApplicantID) (*models.Applicant, error)
	ListApplications(ctx context.Context, status string, page models.Page) (*models.ApplicantPage, error)

	ListMembers(ctx context.Context, page models.Page) (*models.ApplicantPage, error)
	GetMember(ctx context.Context, memberID id.ApplicantID) (*models.Applicant, error)
	CreateMember(ctx context.Context, req *models.MemberRequest) (*models.Applicant, error)
	UpdateMember(ctx context.Context, memberID id.ApplicantID, req *models.MemberRequest) (*models.Applicant, error)
	DeleteMember(ctx context.Context, memberID id.ApplicantID) error
}

// Sweeper runs an on-demand retention purge.
type Sweeper interface {
	Purge(ctx context.Context) (int, error)
}

// Handler wires membership endpoints to the engine.
type Handler struct {
	service Service
	sweeper Sweeper
	logger  *slog.Logger
}

func New(service Service, sweeper Sweeper, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Register mounts the public intake route and the admin routes. requireAdmin
// guards every admin route.
func (h *Handler) Register(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Post("/api/membership/apply", h.HandleApply)

	r.Route("/api/admin/membership", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Get("/", h.HandleListMembers)
		r.Post("/", h.HandleCreateMember)

		r.Route("/applications", func(r chi.Router) {
			r.Get("/", h.HandleListApplications)
			r.Get("/{id}", h.HandleGetApplication)
			r.Patch("/{id}/accept", h.HandleAccept)
			r.Patch("/{id}/reject", h.HandleReject)
			r.Patch("/{id}/pending", h.HandleRevert)
			r.Delete("/{id}", h.HandleDeleteApplication)
		})

		r.Post("/retention/sweep", h.HandleSweep)

		r.Get("/{id}", h.HandleGetMember)
		r.Put("/{id}", h.HandleUpdateMember)
		r.Delete("/{id}", h.HandleDeleteMember)
	})
}

// HandleApply handles POST /api/membership/apply.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req models.ApplyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid membership application body", err)
		return
	}

	applicant, err := h.service.Apply(ctx, &req)
	if err != nil {
		h.fail(w, r, "membership application refused", err)
		return
	}

	h.logger.InfoContext(ctx, "membership application received",
		"request_id", requestcontext.RequestID(ctx),
		"applicant_id", applicant.ID.String(),
		"client_ip", metadata.GetClientIP(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, applicant)
}

func (h *Handler) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, r, "invalid page", err)
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = string(models.StatusPending)
	}
	result, err := h.service.ListApplications(r.Context(), status, page)
	if err != nil {
		h.fail(w, r, "failed to list applications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	applicantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	applicant, err := h.service.GetApplication(r.Context(), applicantID)
	if err != nil {
		h.fail(w, r, "failed to load application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, applicant)
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept", h.service.Accept)
}

func (h *Handler) HandleRevert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "revert", h.service.RevertToPending)
}

// HandleReject accepts an optional body with days_to_keep and reason.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	applicantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req *models.RejectRequest
	var body models.RejectRequest
	err := httputil.DecodeJSON(r, &body)
	switch {
	case err == nil:
		req = &body
	case errors.Is(err, io.EOF):
	default:
		h.fail(w, r, "invalid reject body", err)
		return
	}

	applicant, err := h.service.Reject(r.Context(), applicantID, req)
	if err != nil {
		h.fail(w, r, "failed to reject application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, applicant)
}

func (h *Handler) HandleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	applicantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), applicantID); err != nil {
		h.fail(w, r, "failed to delete application", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSweep runs the retention purge immediately.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	purged, err := h.sweeper.Purge(ctx)
	if err != nil {
		h.fail(w, r, "manual retention sweep failed", err)
		return
	}
	h.logger.InfoContext(ctx, "manual retention sweep",
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.ActorID(ctx),
		"purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, SweepResponse{Purged: purged})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, id.ApplicantID) (*models.Applicant, error)) {
	applicantID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	applicant, err := fn(r.Context(), applicantID)
	if err != nil {
		h.fail(w, r, action+" failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, applicant)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (id.ApplicantID, bool) {
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid applicant id", err)
		return id.ApplicantID{}, false
	}
	return applicantID, true
}

// fail logs client errors at warn and server errors at error, then writes
// the mapped response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func parsePage(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	var page models.Page
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, dErrors.New(dErrors.CodeValidation, "page must be a non-negative integer")
		}
		page.Number = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, dErrors.New(dErrors.CodeValidation, "size must be a positive integer")
		}
		page.Size = n
	}
	return page, nil
}
