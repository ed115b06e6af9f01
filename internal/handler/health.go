package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/jmoiron/sqlx"
)

type HealthHandler struct {
	db             *sqlx.DB
	cfg            *config.Config
	avatarsEnabled bool
}

func NewHealthHandler(db *sqlx.DB, cfg *config.Config, avatarsEnabled bool) *HealthHandler {
	return &HealthHandler{db: db, cfg: cfg, avatarsEnabled: avatarsEnabled}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := h.db.PingContext(ctx)
	if err != nil {
		middleware.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PublicConfig exposes the settings clients need to render forms.
func (h *HealthHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	middleware.JSON(w, http.StatusOK, map[string]any{
		"app_name":        h.cfg.AppName,
		"password_policy": h.cfg.PasswordPolicy,
		"vote_withdrawal": h.cfg.VoteWithdrawal,
		"avatars_enabled": h.avatarsEnabled,
		"support_email":   h.cfg.SupportEmail,
	})
}
