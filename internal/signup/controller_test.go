package signup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore replays scripted results for each call.
type fakeStore struct {
	mu       sync.Mutex
	signUps  []error
	signIns  []error
	resends  []error
	exists   []bool
	calls    map[string]int
	requests []SignUpRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: map[string]int{}}
}

func (s *fakeStore) next(name string, errs []error) error {
	n := s.calls[name]
	s.calls[name]++
	if n < len(errs) {
		return errs[n]
	}
	return nil
}

func (s *fakeStore) SignUp(_ context.Context, req SignUpRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	err := s.next("signup", s.signUps)
	if err != nil {
		return "", err
	}
	return "user-1", nil
}

func (s *fakeStore) SignIn(_ context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next("signin", s.signIns)
}

func (s *fakeStore) ResendVerification(_ context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next("resend", s.resends)
}

func (s *fakeStore) UserExists(_ context.Context, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls["exists"]
	s.calls["exists"]++
	if n < len(s.exists) {
		return s.exists[n], nil
	}
	return false, nil
}

func (s *fakeStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func testPolicy() Policy {
	return Policy{
		Password:   validation.StrictPassword,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Redirect:   "http://localhost/auth/verified",
	}
}

func validForm() Form {
	return Form{Email: " Voter@Example.com ", Password: "Password1", ConfirmPassword: "Password1", Name: "Ada"}
}

func TestSubmitSuccess(t *testing.T) {
	store := newFakeStore()
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeSuccess, r.Outcome)
	assert.Equal(t, StateSuccess, r.State)
	assert.Equal(t, []State{StateIdle, StateValidating, StateCheckingExistence, StateCreatingAccount, StateSuccess}, r.Transitions)
	assert.Equal(t, 1, r.Creations)
	assert.Equal(t, 0, r.Retries)
	assert.Equal(t, "user-1", r.UserID)
	assert.Equal(t, "voter@example.com", r.Email)
	assert.Equal(t, "/auth/email-sent?email=voter%40example.com", r.Navigation)

	require.Len(t, store.requests, 1)
	assert.Equal(t, "Ada", store.requests[0].Metadata["name"])
	assert.Equal(t, "http://localhost/auth/verified", store.requests[0].Redirect)
}

func TestSubmitTimeoutThenAccountFound(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{errors.New("504 Gateway Timeout")}
	// initial check: absent; pre-retry check: the timed-out call went through
	store.exists = []bool{false, true}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeSuccess, r.Outcome)
	assert.Equal(t, 1, r.Creations)
	assert.Equal(t, 1, r.Retries)
	assert.Equal(t, 1, store.count("signup"))
	assert.Contains(t, r.Transitions, StateTimedOut)
	assert.Equal(t, StateSuccess, r.State)
	// The existence check cannot name the account's id.
	assert.Empty(t, r.UserID)
}

func TestSubmitTimeoutThenRetrySucceeds(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{ErrTimeout}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeSuccess, r.Outcome)
	assert.Equal(t, 2, r.Creations)
	assert.Equal(t, 1, r.Retries)
}

func TestSubmitRetriesExhausted(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{ErrTimeout, ErrTimeout, ErrTimeout}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeTimeoutMaxRetries, r.Outcome)
	assert.Equal(t, StateMaxRetriesExceeded, r.State)
	assert.Equal(t, 3, r.Creations)
	assert.Equal(t, 2, r.Retries)
	assert.Equal(t, MessageTimeout, r.Message)
	assert.Equal(t, []Recovery{RecoveryResendVerification, RecoveryCheckAccount, RecoveryRetry, RecoverySignIn}, r.Recovery)
	assert.Empty(t, r.Navigation)
}

func TestSubmitExistingAccount(t *testing.T) {
	store := newFakeStore()
	store.exists = []bool{true}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeUserExists, r.Outcome)
	assert.Equal(t, MessageUserExists, r.Message)
	assert.Equal(t, 0, r.Creations)
	assert.Equal(t, 0, store.count("signup"))
}

func TestSubmitStoreReportsDuplicate(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{errors.New("User already registered")}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeUserExists, r.Outcome)
	assert.Equal(t, StateUserExists, r.State)
	assert.Equal(t, 1, r.Creations)
}

func TestSubmitRateLimited(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{ErrRateLimited}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeUnexpectedError, r.Outcome)
	assert.Equal(t, MessageRateLimited, r.Message)
	assert.Equal(t, 1, r.Creations)
}

func TestSubmitUnexpectedError(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{errors.New("connection refused")}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	r := c.Submit(context.Background(), validForm())

	assert.Equal(t, OutcomeUnexpectedError, r.Outcome)
	assert.Equal(t, StateFailed, r.State)
	assert.Equal(t, MessageUnexpected, r.Message)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		rules   validation.PasswordRules
		form    Form
		outcome Outcome
		message string
	}{
		{
			name:    "six characters under the basic policy",
			rules:   validation.BasicPassword,
			form:    Form{Email: "a@example.com", Password: "secret", ConfirmPassword: "secret"},
			outcome: OutcomeSuccess,
		},
		{
			name:    "six characters under the strict policy",
			rules:   validation.StrictPassword,
			form:    Form{Email: "a@example.com", Password: "Secr3t", ConfirmPassword: "Secr3t"},
			outcome: OutcomeValidationError,
			message: "password must be at least 8 characters",
		},
		{
			name:    "strict policy needs a digit",
			rules:   validation.StrictPassword,
			form:    Form{Email: "a@example.com", Password: "Password", ConfirmPassword: "Password"},
			outcome: OutcomeValidationError,
			message: "password must contain at least one number",
		},
		{
			name:    "mismatched confirmation",
			rules:   validation.StrictPassword,
			form:    Form{Email: "a@example.com", Password: "Password1", ConfirmPassword: "Password2"},
			outcome: OutcomeValidationError,
			message: "Passwords do not match",
		},
		{
			name:    "malformed email",
			rules:   validation.StrictPassword,
			form:    Form{Email: "not-an-email", Password: "Password1", ConfirmPassword: "Password1"},
			outcome: OutcomeValidationError,
			message: "please enter a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			policy := testPolicy()
			policy.Password = tt.rules
			c := NewController(store, NewLookupChecker(store), policy)

			r := c.Submit(context.Background(), tt.form)

			assert.Equal(t, tt.outcome, r.Outcome)
			if tt.message != "" {
				assert.Equal(t, tt.message, r.Message)
				assert.Equal(t, 0, store.count("signup"))
			}
		})
	}
}

func TestSubmitCancelledContext(t *testing.T) {
	store := newFakeStore()
	store.signUps = []error{ErrTimeout, ErrTimeout, ErrTimeout}
	policy := testPolicy()
	policy.RetryDelay = time.Hour
	c := NewController(store, NewLookupChecker(store), policy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := c.Submit(ctx, validForm())

	assert.Equal(t, OutcomeUnexpectedError, r.Outcome)
	assert.Equal(t, 1, r.Creations)
}

func TestResendVerification(t *testing.T) {
	t.Run("never creates an account", func(t *testing.T) {
		store := newFakeStore()
		c := NewController(store, NewLookupChecker(store), testPolicy())

		require.NoError(t, c.ResendVerification(context.Background(), "a@example.com"))
		require.NoError(t, c.ResendVerification(context.Background(), "a@example.com"))
		assert.Equal(t, 2, store.count("resend"))
		assert.Equal(t, 0, store.count("signup"))
	})

	t.Run("timeouts surface as ErrTimeout", func(t *testing.T) {
		store := newFakeStore()
		store.resends = []error{context.DeadlineExceeded}
		c := NewController(store, NewLookupChecker(store), testPolicy())

		err := c.ResendVerification(context.Background(), "a@example.com")
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		store := newFakeStore()
		c := NewController(store, NewLookupChecker(store), testPolicy())

		err := c.ResendVerification(context.Background(), "nope")
		assert.True(t, validation.IsValidationError(err))
		assert.Equal(t, 0, store.count("resend"))
	})
}

func TestProbeChecker(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		exists bool
	}{
		{"wrong password means the account exists", errors.New("Invalid login credentials"), true},
		{"unknown user", errors.New("user not found"), false},
		{"unconfirmed account", errors.New("email not confirmed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.signIns = []error{tt.err}

			exists, err := NewProbeChecker(store).Exists(context.Background(), "a@example.com")
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
		})
	}

	t.Run("timeouts are returned", func(t *testing.T) {
		store := newFakeStore()
		store.signIns = []error{ErrTimeout}

		_, err := NewProbeChecker(store).Exists(context.Background(), "a@example.com")
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ErrTimeout))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(errors.New("upstream returned 504")))
	assert.True(t, IsTimeout(errors.New("Bad Gateway")))
	assert.False(t, IsTimeout(errors.New("user already registered")))
	assert.False(t, IsTimeout(nil))
}

func TestCheckAccount(t *testing.T) {
	store := newFakeStore()
	store.exists = []bool{true}
	c := NewController(store, NewLookupChecker(store), testPolicy())

	exists, err := c.CheckAccount(context.Background(), "A@Example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = c.CheckAccount(context.Background(), "bad")
	assert.True(t, validation.IsValidationError(err))
}

// stalledChecker blocks until its context ends and keeps each budget it got.
type stalledChecker struct {
	mu      sync.Mutex
	budgets []time.Duration
}

func (c *stalledChecker) Exists(ctx context.Context, _ string) (bool, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.mu.Lock()
		c.budgets = append(c.budgets, time.Until(deadline))
		c.mu.Unlock()
	}
	<-ctx.Done()
	return false, ctx.Err()
}

func TestExistenceCheckHasItsOwnBudget(t *testing.T) {
	store := newFakeStore()
	checker := &stalledChecker{}
	policy := testPolicy()
	policy.ExistenceTimeout = 20 * time.Millisecond
	policy.ResendTimeout = time.Hour
	c := NewController(store, checker, policy)

	r := c.Submit(context.Background(), validForm())
	assert.Equal(t, OutcomeSuccess, r.Outcome)
	assert.Equal(t, 1, store.count("signup"))

	_, err := c.CheckAccount(context.Background(), "voter@example.com")
	assert.ErrorIs(t, err, ErrTimeout)

	checker.mu.Lock()
	defer checker.mu.Unlock()
	require.Len(t, checker.budgets, 2)
	for _, budget := range checker.budgets {
		assert.LessOrEqual(t, budget, policy.ExistenceTimeout)
	}
}
