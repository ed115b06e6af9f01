package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/service"
)

// Authenticate resolves a bearer token to its user and profile on every
// request. Missing or invalid tokens continue as guests.
func Authenticate(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, profile, err := authService.Session(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithSession(r.Context(), user, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth answers 401 unless a valid bearer token was presented.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			Error(w, http.StatusUnauthorized, "Missing or invalid authorization token")
			return
		}
		next(w, r)
	}
}

// RequireAdmin re-reads the caller's role from the store on every request.
func RequireAdmin(adminService *service.AdminService) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			_, err := adminService.Authorize(r.Context(), ctxkeys.UserID(r.Context()))
			if err != nil {
				if errors.Is(err, service.ErrForbidden) {
					Error(w, http.StatusForbidden, "Insufficient permissions")
					return
				}
				slog.Error("failed to authorize admin", "error", err)
				Error(w, http.StatusInternalServerError, "Something went wrong, please try again later")
				return
			}
			next(w, r)
		})
	}
}
