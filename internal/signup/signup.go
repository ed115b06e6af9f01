// Package signup drives an account from form submission to a confirmed or
// explainable terminal state, retrying creation calls that time out.
package signup

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/validation"
)

type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateCheckingExistence  State = "checking_existence"
	StateCreatingAccount    State = "creating_account"
	StateSuccess            State = "success"
	StateUserExists         State = "user_exists"
	StateTimedOut           State = "timed_out"
	StateMaxRetriesExceeded State = "max_retries_exceeded"
	StateFailed             State = "failed"
)

type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeSuccess           Outcome = "success"
	OutcomeUserExists        Outcome = "user_exists"
	OutcomeTimeoutMaxRetries Outcome = "timeout_max_retries"
	OutcomeValidationError   Outcome = "validation_error"
	OutcomeUnexpectedError   Outcome = "unexpected_error"
)

// Recovery options offered once retries are exhausted.
type Recovery string

const (
	RecoveryResendVerification Recovery = "resend_verification"
	RecoveryCheckAccount       Recovery = "check_account"
	RecoveryRetry              Recovery = "retry"
	RecoverySignIn             Recovery = "sign_in"
)

var (
	ErrTimeout     = errors.New("request timeout")
	ErrRateLimited = errors.New("rate limited")
	ErrUserExists  = errors.New("user already registered")
)

const (
	MessageSuccess     = "Account created! Please check your email to verify your account."
	MessageUserExists  = "An account with this email already exists. Please sign in instead."
	MessageTimeout     = "Account creation is taking longer than expected. Your account may have been created, so check your email or try again."
	MessageRateLimited = "Too many attempts. Please wait a moment and try again."
	MessageUnexpected  = "Something went wrong, please try again later"
)

type Form struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name,omitempty"`
}

// Policy holds the rules and timing budgets of one controller.
type Policy struct {
	Password         validation.PasswordRules
	MaxRetries       int
	RetryDelay       time.Duration // retry n waits n x RetryDelay
	AttemptTimeout   time.Duration
	ExistenceTimeout time.Duration
	ResendTimeout    time.Duration
	SettleDelay      time.Duration
	Redirect         string
}

func DefaultPolicy() Policy {
	return Policy{
		Password:         validation.StrictPassword,
		MaxRetries:       2,
		RetryDelay:       2 * time.Second,
		AttemptTimeout:   60 * time.Second,
		ExistenceTimeout: 5 * time.Second,
		ResendTimeout:    8 * time.Second,
		SettleDelay:      2 * time.Second,
	}
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Password:         validation.PasswordRulesFor(cfg.PasswordPolicy),
		MaxRetries:       cfg.SignupMaxRetries,
		RetryDelay:       cfg.SignupRetryDelay,
		AttemptTimeout:   cfg.SignupAttemptTimeout,
		ExistenceTimeout: cfg.SignupExistenceTimeout,
		ResendTimeout:    cfg.SignupResendTimeout,
		SettleDelay:      cfg.SignupSettleDelay,
		Redirect:         strings.TrimSuffix(cfg.AppURL, "/") + "/auth/verified",
	}
}

// Validate applies the form rules in order and returns the first failure.
func Validate(form Form, rules validation.PasswordRules) error {
	err := validation.ValidateEmail(validation.NormalizeEmail(form.Email))
	if err != nil {
		return err
	}

	err = validation.ValidatePassword(form.Password, rules)
	if err != nil {
		return err
	}

	if form.Password != form.ConfirmPassword {
		return &validation.Error{Message: "Passwords do not match"}
	}

	return nil
}

// SignUpRequest is the credential store's account creation call.
type SignUpRequest struct {
	Email    string
	Password string
	Redirect string
	Metadata map[string]string
}

// CredentialStore is the account authority the controller talks to.
type CredentialStore interface {
	SignUp(ctx context.Context, req SignUpRequest) (userID string, err error)
	SignIn(ctx context.Context, email, password string) error
	ResendVerification(ctx context.Context, email, redirect string) error
}

// IsTimeout reports whether err means the call did not finish in time: the
// sentinel, an expired context, or a gateway-style message.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "gateway") || strings.Contains(msg, "504")
}

func isUserExists(err error) bool {
	if errors.Is(err, ErrUserExists) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already registered") || strings.Contains(msg, "already exists")
}
