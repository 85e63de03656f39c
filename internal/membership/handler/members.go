package handler

import (
	"net/http"

	"orgapi/internal/membership/models"
	"orgapi/pkg/platform/httputil"
)

func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, r, "invalid page", err)
		return
	}
	result, err := h.service.ListMembers(r.Context(), page)
	if err != nil {
		h.fail(w, r, "failed to list members", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGetMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	member, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		h.fail(w, r, "failed to load member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) HandleCreateMember(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, ok := httputil.DecodeAndPrepare[models.MemberRequest](w, r, h.logger)
	if !ok {
		return
	}
	member, err := h.service.CreateMember(r.Context(), req)
	if err != nil {
		h.fail(w, r, "failed to create member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, member)
}

func (h *Handler) HandleUpdateMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, ok := httputil.DecodeAndPrepare[models.MemberRequest](w, r, h.logger)
	if !ok {
		return
	}
	member, err := h.service.UpdateMember(r.Context(), memberID, req)
	if err != nil {
		h.fail(w, r, "failed to update member", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, member)
}

func (h *Handler) HandleDeleteMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMember(r.Context(), memberID); err != nil {
		h.fail(w, r, "failed to delete member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
