package handler

import (
	"net/http"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
)

// AdminHandler serves the admin console. Every route also sits behind
// RequireAdmin; the service re-checks the actor's role itself.
type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.adminService.ListUsers(r.Context(), ctxkeys.UserID(r.Context()),
		queryInt(r, 1, "page"),
		queryInt(r, service.DefaultPageSize, "pageSize", "page_size"),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ManageUser(w http.ResponseWriter, r *http.Request) {
	var req service.ManageUserRequest
	if !decode(w, r, &req) {
		return
	}

	profile, err := h.adminService.ManageUser(r.Context(), ctxkeys.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"success": true, "profile": profile})
}

func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		middleware.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	result, err := h.adminService.LookupUser(r.Context(), ctxkeys.UserID(r.Context()), email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, result)
}

func (h *AdminHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.adminService.LookupUserProfile(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, user)
}

func (h *AdminHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.SearchUsers(r.Context(), ctxkeys.UserID(r.Context()), queryString(r, "searchTerm", "q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := service.ParseAnalyticsFilter(queryString(r, "filter", "range"), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	analytics, err := h.adminService.Analytics(r.Context(), ctxkeys.UserID(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, analytics)
}
