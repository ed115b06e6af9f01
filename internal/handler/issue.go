package handler

import (
	"net/http"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/service"
)

type IssueHandler struct {
	issueService *service.IssueService
}

func NewIssueHandler(issueService *service.IssueService) *IssueHandler {
	return &IssueHandler{issueService: issueService}
}

func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.issueService.List(r.Context(), model.IssueFilter{
		Scope:    r.URL.Query().Get("scope"),
		Category: r.URL.Query().Get("category"),
		Page:     queryInt(r, 1, "page"),
		PageSize: queryInt(r, service.DefaultPageSize, "page_size", "pageSize"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, page)
}

func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateIssueRequest
	if !decode(w, r, &req) {
		return
	}

	issue, err := h.issueService.Create(r.Context(), ctxkeys.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, issue)
}

func (h *IssueHandler) Show(w http.ResponseWriter, r *http.Request) {
	issue, err := h.issueService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, issue)
}

func (h *IssueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.issueService.Delete(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *IssueHandler) Positions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.issueService.Positions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (h *IssueHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePositionRequest
	if !decode(w, r, &req) {
		return
	}

	position, err := h.issueService.CreatePosition(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, position)
}

func (h *IssueHandler) Position(w http.ResponseWriter, r *http.Request) {
	position, err := h.issueService.Position(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, position)
}
