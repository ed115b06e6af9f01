package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dirigovotes/dirigo/internal/signup"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replyWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"gateway timeout", http.StatusGatewayTimeout, `{"error":"Request timed out"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, signup.ErrTimeout)
		}},
		{"bad gateway", http.StatusBadGateway, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, signup.ErrTimeout)
		}},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, signup.ErrRateLimited)
		}},
		{"conflict", http.StatusConflict, `{"error":"user already registered"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, signup.ErrUserExists)
		}},
		{"validation", http.StatusBadRequest, `{"error":"password must contain at least one number"}`, func(t *testing.T, err error) {
			assert.True(t, validation.IsValidationError(err))
			assert.EqualError(t, err, "password must contain at least one number")
		}},
		{"other", http.StatusUnauthorized, `{"error":"invalid login credentials"}`, func(t *testing.T, err error) {
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
			assert.Equal(t, "invalid login credentials", apiErr.Message)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(replyWith(tt.status, tt.body))
			defer srv.Close()

			err := New(srv.URL).SignIn(context.Background(), "a@example.com", "Password1")
			tt.check(t, err)
		})
	}
}

func TestSignUpMakesOneCreationCall(t *testing.T) {
	bodies := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/accounts", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		replyWith(http.StatusCreated, `{"user_id":"u-1"}`)(w, r)
	}))
	defer srv.Close()

	id, err := New(srv.URL+"/").SignUp(context.Background(), signup.SignUpRequest{
		Email:    "a@example.com",
		Password: "Password1",
		Redirect: "http://localhost/auth/verified",
		Metadata: map[string]string{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
	got := <-bodies
	assert.Equal(t, "Password1", got["password"])
	assert.Equal(t, "Ada", got["name"])
	assert.Equal(t, "http://localhost/auth/verified", got["redirect"])
}

func TestAccountStatusAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/account-status":
			assert.Equal(t, "a+b@example.com", r.URL.Query().Get("email"))
			replyWith(http.StatusOK, `{"exists":true,"confirmed":false}`)(w, r)
		case "/api/admin/users":
			if r.Header.Get("Authorization") != "Bearer admin-token" {
				replyWith(http.StatusUnauthorized, `{"error":"Missing or invalid authorization token"}`)(w, r)
				return
			}
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			replyWith(http.StatusOK, `{"users":[],"total":0,"page":2,"page_size":5,"total_pages":0}`)(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	status, err := New(srv.URL).AccountStatus(ctx, "a+b@example.com")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.False(t, status.Confirmed)

	exists, err := New(srv.URL).UserExists(ctx, "a+b@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = New(srv.URL).ListUsers(ctx, 2, 5)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)

	page, err := New(srv.URL, WithToken("admin-token")).ListUsers(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
}

func TestTransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	err := c.ResendVerification(context.Background(), "a@example.com", "")
	assert.ErrorIs(t, err, signup.ErrTimeout)
}

// The controller drives a remote signup end to end through the client.
func TestControllerOverClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/account-status":
			replyWith(http.StatusOK, `{"exists":false,"confirmed":false}`)(w, r)
		case "/api/auth/accounts":
			if calls.Add(1) == 1 {
				replyWith(http.StatusGatewayTimeout, `{"error":"upstream timeout"}`)(w, r)
				return
			}
			replyWith(http.StatusCreated, `{"user_id":"u-2"}`)(w, r)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	policy := signup.DefaultPolicy()
	policy.RetryDelay = time.Millisecond
	policy.SettleDelay = 0
	controller := signup.NewController(c, signup.NewLookupChecker(c), policy)

	result := controller.Submit(context.Background(), signup.Form{
		Email: "new@example.com", Password: "Password1", ConfirmPassword: "Password1",
	})
	assert.Equal(t, signup.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 2, result.Creations)
	assert.Equal(t, 1, result.Retries)
	assert.Equal(t, "u-2", result.UserID)
	assert.Equal(t, int32(2), calls.Load())
}
