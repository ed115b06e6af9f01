package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/signup"
	"github.com/dirigovotes/dirigo/internal/validation"
)

type authHandler struct {
	authService *service.AuthService
	controller  *signup.Controller
	limiter     middleware.Limiter
	appURL      string
}

func NewAuthHandler(authService *service.AuthService, controller *signup.Controller, limiter middleware.Limiter, cfg *config.Config) *authHandler {
	return &authHandler{
		authService: authService,
		controller:  controller,
		limiter:     limiter,
		appURL:      strings.TrimSuffix(cfg.AppURL, "/"),
	}
}

type signupResponse struct {
	*signup.Result
	Error string `json:"error,omitempty"`
}

// SignUp runs the resilient signup flow for one form submission.
func (h *authHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var form signup.Form
	if !decode(w, r, &form) {
		return
	}

	result := h.controller.Submit(r.Context(), form)

	resp := signupResponse{Result: result}
	status := http.StatusCreated
	switch result.Outcome {
	case signup.OutcomeSuccess:
	case signup.OutcomeUserExists:
		status = http.StatusConflict
	case signup.OutcomeValidationError:
		status = http.StatusBadRequest
	case signup.OutcomeTimeoutMaxRetries:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
		if result.Message == signup.MessageRateLimited {
			status = http.StatusTooManyRequests
		}
	}
	if status != http.StatusCreated {
		resp.Error = result.Message
	}

	middleware.JSON(w, status, resp)
}

type createAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// CreateAccount makes exactly one creation call. Remote signup controllers
// use it so that their retries are the only ones.
func (h *authHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.authService.SignUp(r.Context(), service.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		Redirect: req.Redirect,
		Metadata: map[string]string{"name": req.Name},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, map[string]string{"user_id": user.ID})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *authHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}

	session, err := h.authService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, session)
}

// SignOut is a no-op for stateless bearer tokens; clients drop the token.
func (h *authHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	middleware.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *authHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.controller.ResendVerification(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "If an account exists for this email, a new confirmation link is on its way.",
	})
}

// VerifyEmail confirms the account behind a link token. Browsers following
// the link with a relative redirect are sent on to the app.
func (h *authHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	redirect := r.URL.Query().Get("redirect")
	if isRelativePath(redirect) {
		http.Redirect(w, r, h.appURL+redirect, http.StatusSeeOther)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"verified": true, "user": user})
}

func isRelativePath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

func (h *authHandler) Session(w http.ResponseWriter, r *http.Request) {
	middleware.JSON(w, http.StatusOK, map[string]any{
		"user":    ctxkeys.User(r.Context()),
		"profile": ctxkeys.Profile(r.Context()),
	})
}

// AccountStatus backs the "check my account" recovery option.
func (h *authHandler) AccountStatus(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		middleware.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	if !middleware.Allow(w, r, h.limiter, "account-status:"+validation.NormalizeEmail(email)) {
		slog.Warn("account status rate limit exceeded")
		return
	}

	exists, confirmed, err := h.authService.AccountStatus(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]bool{"exists": exists, "confirmed": confirmed})
}
