// Package client talks to a running Dirigo API. It implements the signup
// controller's credential store so the CLI can drive signups remotely.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/signup"
	"github.com/dirigovotes/dirigo/internal/validation"
)

const defaultTimeout = 90 * time.Second

// APIError is a non-2xx reply that maps to no sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignUp makes one creation call. The server does not retry it, so the
// calling controller's retry budget is the whole budget.
func (c *Client) SignUp(ctx context.Context, req signup.SignUpRequest) (string, error) {
	body := map[string]string{
		"email":    req.Email,
		"password": req.Password,
		"name":     req.Metadata["name"],
		"redirect": req.Redirect,
	}

	var created struct {
		UserID string `json:"user_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/accounts", body, &created)
	if err != nil {
		return "", err
	}
	return created.UserID, nil
}

// SignIn checks credentials. Use Login to keep the session.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	_, err := c.Login(ctx, email, password)
	return err
}

func (c *Client) Login(ctx context.Context, email, password string) (*service.Session, error) {
	var session service.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{"email": email, "password": password}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ResendVerification asks the server to mail the confirmation link again.
// The server owns the redirect, so redirect is ignored.
func (c *Client) ResendVerification(ctx context.Context, email, _ string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": email}, nil)
}

type AccountStatus struct {
	Exists    bool `json:"exists"`
	Confirmed bool `json:"confirmed"`
}

func (c *Client) AccountStatus(ctx context.Context, email string) (*AccountStatus, error) {
	var status AccountStatus
	err := c.do(ctx, http.MethodGet, "/api/auth/account-status?email="+url.QueryEscape(email), nil, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) UserExists(ctx context.Context, email string) (bool, error) {
	status, err := c.AccountStatus(ctx, email)
	if err != nil {
		return false, err
	}
	return status.Exists, nil
}

// ListUsers needs an admin token.
func (c *Client) ListUsers(ctx context.Context, page, pageSize int) (*service.UserPage, error) {
	var users service.UserPage
	path := fmt.Sprintf("/api/admin/users?page=%d&pageSize=%d", page, pageSize)
	err := c.do(ctx, http.MethodGet, path, nil, &users)
	if err != nil {
		return nil, err
	}
	return &users, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return signup.ErrTimeout
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// decodeError maps a status and its {"error": ...} body onto the sentinels
// the signup controller understands.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	message := body.Error
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusGatewayTimeout, http.StatusBadGateway:
		return signup.ErrTimeout
	case http.StatusTooManyRequests:
		return signup.ErrRateLimited
	case http.StatusConflict:
		return signup.ErrUserExists
	case http.StatusBadRequest:
		return &validation.Error{Message: message}
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}
