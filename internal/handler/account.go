package handler

import (
	"log/slog"
	"net/http"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
)

type AccountHandler struct {
	userService *service.UserService
}

func NewAccountHandler(userService *service.UserService) *AccountHandler {
	return &AccountHandler{userService: userService}
}

func (h *AccountHandler) Show(w http.ResponseWriter, r *http.Request) {
	account, err := h.userService.Account(r.Context(), ctxkeys.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, account)
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decode(w, r, &req) {
		return
	}

	err := h.userService.UpdatePassword(r.Context(), ctxkeys.UserID(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	user := ctxkeys.User(r.Context())
	err := h.userService.DeleteAccount(r.Context(), user.ID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account deleted", "user_id", user.ID, "email", user.Email)
	w.WriteHeader(http.StatusNoContent)
}
