package signup

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/dirigovotes/dirigo/internal/metrics"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/sethvargo/go-retry"
)

// Result is the record of one signup interaction. It is never persisted.
type Result struct {
	Outcome     Outcome    `json:"outcome"`
	State       State      `json:"state"`
	Transitions []State    `json:"transitions"`
	Creations   int        `json:"creations"`
	Retries     int        `json:"retries"`
	// UserID is empty when a post-timeout existence check found the account,
	// since the check answers only whether it exists.
	UserID      string     `json:"user_id,omitempty"`
	Email       string     `json:"email"`
	Message     string     `json:"message"`
	Navigation  string     `json:"navigation,omitempty"`
	Recovery    []Recovery `json:"recovery,omitempty"`
}

func (r *Result) to(state State) {
	r.State = state
	r.Transitions = append(r.Transitions, state)
}

func (r *Result) finish(state State, outcome Outcome, message string) *Result {
	r.to(state)
	r.Outcome = outcome
	r.Message = message
	metrics.SignupOutcomes.WithLabelValues(string(outcome)).Inc()
	return r
}

type Controller struct {
	store   CredentialStore
	checker ExistenceChecker
	policy  Policy
}

func NewController(store CredentialStore, checker ExistenceChecker, policy Policy) *Controller {
	return &Controller{
		store:   store,
		checker: checker,
		policy:  policy,
	}
}

// Submit runs the whole flow for one form. It never returns an error; the
// terminal state and message are in the result.
func (c *Controller) Submit(ctx context.Context, form Form) *Result {
	email := validation.NormalizeEmail(form.Email)
	r := &Result{Outcome: OutcomePending, State: StateIdle, Transitions: []State{StateIdle}, Email: email}

	r.to(StateValidating)
	err := Validate(form, c.policy.Password)
	if err != nil {
		return r.finish(StateFailed, OutcomeValidationError, err.Error())
	}

	r.to(StateCheckingExistence)
	exists, err := c.exists(ctx, email)
	if err != nil {
		slog.Warn("existence check failed, continuing with creation", "error", err)
	}
	if exists {
		return r.finish(StateUserExists, OutcomeUserExists, MessageUserExists)
	}

	req := SignUpRequest{
		Email:    email,
		Password: form.Password,
		Redirect: c.policy.Redirect,
		Metadata: map[string]string{},
	}
	if form.Name != "" {
		req.Metadata["name"] = form.Name
	}

	createdDuringTimeout := false
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		if r.State == StateTimedOut {
			r.Retries++
			exists, err := c.exists(ctx, email)
			if err != nil {
				slog.Warn("pre-retry existence check failed", "error", err, "retry", r.Retries)
			}
			if exists {
				createdDuringTimeout = true
				return nil
			}
		}

		r.to(StateCreatingAccount)
		userID, err := c.create(ctx, req)
		r.Creations++
		if err == nil {
			r.UserID = userID
			return nil
		}
		if IsTimeout(err) && ctx.Err() == nil {
			r.to(StateTimedOut)
			slog.Warn("account creation timed out", "email", email, "attempt", r.Creations)
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		if createdDuringTimeout {
			slog.Info("account found after timeout, skipping further creation", "email", email)
		}
		c.settle(ctx)
		r.Navigation = "/auth/email-sent?email=" + url.QueryEscape(email)
		return r.finish(StateSuccess, OutcomeSuccess, MessageSuccess)
	case ctx.Err() != nil:
		return r.finish(StateFailed, OutcomeUnexpectedError, MessageUnexpected)
	case IsTimeout(err):
		r.Recovery = []Recovery{RecoveryResendVerification, RecoveryCheckAccount, RecoveryRetry, RecoverySignIn}
		return r.finish(StateMaxRetriesExceeded, OutcomeTimeoutMaxRetries, MessageTimeout)
	case isUserExists(err):
		return r.finish(StateUserExists, OutcomeUserExists, MessageUserExists)
	case validation.IsValidationError(err):
		return r.finish(StateFailed, OutcomeValidationError, err.Error())
	case errors.Is(err, ErrRateLimited):
		return r.finish(StateFailed, OutcomeUnexpectedError, MessageRateLimited)
	default:
		slog.Error("account creation failed", "error", err, "email", email)
		return r.finish(StateFailed, OutcomeUnexpectedError, MessageUnexpected)
	}
}

// backoff waits attempt x RetryDelay before each retry, at most MaxRetries times.
func (c *Controller) backoff() retry.Backoff {
	var attempt int64
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * c.policy.RetryDelay, false
	})
	return retry.WithMaxRetries(uint64(c.policy.MaxRetries), linear)
}

func (c *Controller) create(ctx context.Context, req SignUpRequest) (string, error) {
	metrics.SignupAttempts.Inc()
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}
	return c.store.SignUp(ctx, req)
}

func (c *Controller) exists(ctx context.Context, email string) (bool, error) {
	if c.policy.ExistenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.ExistenceTimeout)
		defer cancel()
	}
	return c.checker.Exists(ctx, email)
}

// settle gives the store time to finish its asynchronous side effects.
func (c *Controller) settle(ctx context.Context) {
	if c.policy.SettleDelay <= 0 {
		return
	}
	t := time.NewTimer(c.policy.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ResendVerification asks the store to send the confirmation email again.
// It never creates an account.
func (c *Controller) ResendVerification(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return err
	}

	if c.policy.ResendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.ResendTimeout)
		defer cancel()
	}

	err = c.store.ResendVerification(ctx, email, c.policy.Redirect)
	if IsTimeout(err) {
		return ErrTimeout
	}
	return err
}

// CheckAccount reports whether an account is registered for email.
func (c *Controller) CheckAccount(ctx context.Context, email string) (bool, error) {
	email = validation.NormalizeEmail(email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return false, err
	}

	exists, err := c.exists(ctx, email)
	if IsTimeout(err) {
		return false, ErrTimeout
	}
	return exists, err
}
