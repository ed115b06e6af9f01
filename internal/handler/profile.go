package handler

import (
	"log/slog"
	"net/http"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
)

// maxUploadMemory bounds the multipart form kept in memory.
const maxUploadMemory = 10 << 20

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.ByUserID(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}

	profile, err := h.profileService.UpdateName(r.Context(), ctxkeys.UserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(maxUploadMemory)
	if err != nil {
		middleware.Error(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		middleware.Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close file", "error", closeErr)
		}
	}()

	profile, err := h.profileService.UploadAvatar(r.Context(), ctxkeys.UserID(r.Context()), header)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	err := h.profileService.DeleteAvatar(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
