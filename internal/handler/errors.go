package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/metrics"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/signup"
	"github.com/dirigovotes/dirigo/internal/storage"
	"github.com/dirigovotes/dirigo/internal/validation"
)

const messageUnexpected = "Something went wrong, please try again later"

var notFound = []error{
	repository.ErrUserNotFound,
	repository.ErrProfileNotFound,
	repository.ErrIssueNotFound,
	repository.ErrPositionNotFound,
	repository.ErrAvatarNotFound,
	service.ErrNoVote,
}

// writeError maps an error onto the status taxonomy and writes {"error": ...}.
// Unknown errors are logged at error level, which also lands them in the
// system errors table.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", metrics.Route(r.URL.Path), "request_id", ctxkeys.RequestID(r.Context()))
	}
	middleware.Error(w, status, message)
}

func classify(err error) (int, string) {
	switch {
	case validation.IsValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEmailAlreadyExists), errors.Is(err, signup.ErrUserExists), errors.Is(err, repository.ErrDuplicateEmail):
		return http.StatusConflict, service.ErrEmailAlreadyExists.Error()
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, service.ErrInvalidSession), errors.Is(err, service.ErrInvalidCurrentPassword):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrAccountDeactivated):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, signup.ErrRateLimited):
		return http.StatusTooManyRequests, signup.MessageRateLimited
	case errors.Is(err, storage.ErrDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case signup.IsTimeout(err):
		return http.StatusGatewayTimeout, "Request timed out, please try again"
	}

	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound, target.Error()
		}
	}

	return http.StatusInternalServerError, messageUnexpected
}

// decode reads a JSON body and answers 400 on malformed input.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := middleware.DecodeJSON(r, v)
	if err != nil {
		middleware.Error(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// queryInt reads the first present key as an int, or def.
func queryInt(r *http.Request, def int, keys ...string) int {
	for _, key := range keys {
		v := r.URL.Query().Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func queryString(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := r.URL.Query().Get(key); v != "" {
			return v
		}
	}
	return ""
}
