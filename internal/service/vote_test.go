package service_test

import (
	"context"
	"testing"

	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVoteService(database *sqlx.DB, bus events.Bus, allowWithdrawal bool) *service.VoteService {
	return service.NewVoteService(
		repository.NewVoteRepository(database),
		repository.NewVoteTrackingRepository(database),
		repository.NewPositionRepository(database),
		bus,
		allowWithdrawal,
		"vote-seal-key",
	)
}

func ptr(s string) *string { return &s }

func TestTransferPersisted(t *testing.T) {
	database := testutil.NewDB(t)
	bus := events.NewLocalBus()
	var published []events.Event
	bus.Subscribe(events.TopicVoteCast, func(_ context.Context, e events.Event) {
		published = append(published, e)
	})

	votes := newVoteService(database, bus, true)
	ctx := context.Background()
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	issue, positions := testutil.CreateIssue(t, database, user.ID, "Yes", "No")
	a, b := positions[0].ID, positions[1].ID

	tally := service.NewTally(nil)
	result, err := votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a)}, tally)
	require.NoError(t, err)
	assert.Equal(t, service.ActionRecorded, result.Action)
	assert.Equal(t, 1, tally.Count(a))
	assert.Equal(t, 1, testutil.Votes(t, database, a))

	result, err = votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID, PositionID: ptr(b)}, tally)
	require.NoError(t, err)
	assert.Equal(t, service.ActionUpdated, result.Action)
	require.NotNil(t, result.PreviousPositionID)
	assert.Equal(t, a, *result.PreviousPositionID)
	assert.Equal(t, map[string]int{a: 0, b: 1}, result.Counts)

	record, err := votes.CurrentVote(ctx, user.ID, issue.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, b, *record.PositionID)
	assert.Equal(t, model.PrivacyPublic, record.Privacy)

	// Voting again for the held position withdraws it.
	result, err = votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID, PositionID: ptr(b)}, tally)
	require.NoError(t, err)
	assert.Equal(t, service.ActionRemoved, result.Action)
	assert.Equal(t, 0, testutil.Votes(t, database, b))

	_, err = votes.CurrentVote(ctx, user.ID, issue.ID, nil)
	assert.ErrorIs(t, err, service.ErrNoVote)

	_, err = votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID}, tally)
	assert.ErrorIs(t, err, service.ErrNoVote)

	assert.Len(t, published, 3)
}

func TestTransferWithWithdrawalDisabled(t *testing.T) {
	database := testutil.NewDB(t)
	votes := newVoteService(database, events.NewLocalBus(), false)
	ctx := context.Background()
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	issue, positions := testutil.CreateIssue(t, database, user.ID, "Yes")
	a := positions[0].ID

	_, err := votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a)}, nil)
	require.NoError(t, err)

	result, err := votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a)}, nil)
	require.NoError(t, err)
	assert.Equal(t, service.ActionUnchanged, result.Action)
	assert.Equal(t, 1, testutil.Votes(t, database, a))

	_, err = votes.Transfer(ctx, service.TransferRequest{UserID: user.ID, IssueID: issue.ID}, nil)
	assert.ErrorIs(t, err, service.ErrWithdrawalDisabled)
}

func TestTransferSuperAnonymousUsesTracking(t *testing.T) {
	database := testutil.NewDB(t)
	votes := newVoteService(database, events.NewLocalBus(), true)
	ctx := context.Background()
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	issue, positions := testutil.CreateIssue(t, database, user.ID, "Yes", "No")
	a, b := positions[0].ID, positions[1].ID

	_, err := votes.Transfer(ctx, service.TransferRequest{
		UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a), Privacy: model.PrivacySuperAnonymous,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, votes.CreateTracking(ctx, user.ID, issue.ID, ptr(a)))

	record, err := votes.CurrentVote(ctx, user.ID, issue.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, record.PositionID)

	_, err = votes.Transfer(ctx, service.TransferRequest{
		UserID: user.ID, IssueID: issue.ID, PositionID: ptr(b), Privacy: model.PrivacySuperAnonymous,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, testutil.Votes(t, database, a))
	assert.Equal(t, 1, testutil.Votes(t, database, b))

	tracking, err := votes.CheckTracking(ctx, user.ID, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, tracking)

	deleted, err := votes.DeleteTracking(ctx, user.ID, issue.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	tracking, err = votes.CheckTracking(ctx, user.ID, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, tracking)
}

// assertBalanced checks that the issue's counters add up to its vote records.
func assertBalanced(t *testing.T, database *sqlx.DB, issueID string) {
	t.Helper()
	var counted, records int
	require.NoError(t, database.Get(&counted, `SELECT COALESCE(SUM(votes), 0) FROM positions WHERE issue_id = $1`, issueID))
	require.NoError(t, database.Get(&records, `SELECT COUNT(*) FROM user_votes WHERE issue_id = $1`, issueID))
	assert.Equal(t, records, counted)
}

func TestTransferSuperAnonymousRejectsForgedHints(t *testing.T) {
	database := testutil.NewDB(t)
	votes := newVoteService(database, events.NewLocalBus(), true)
	ctx := context.Background()
	alice := testutil.CreateUser(t, database, "alice@example.com", model.RoleBasic)
	mallory := testutil.CreateUser(t, database, "mallory@example.com", model.RoleBasic)
	issue, positions := testutil.CreateIssue(t, database, alice.ID, "Yes", "No")
	_, others := testutil.CreateIssue(t, database, alice.ID, "Elsewhere")
	a, b, foreign := positions[0].ID, positions[1].ID, others[0].ID

	_, err := votes.Transfer(ctx, service.TransferRequest{UserID: alice.ID, IssueID: issue.ID, PositionID: ptr(a)}, nil)
	require.NoError(t, err)
	_, err = votes.Transfer(ctx, service.TransferRequest{
		UserID: mallory.ID, IssueID: issue.ID, PositionID: ptr(b), Privacy: model.PrivacySuperAnonymous,
	}, nil)
	require.NoError(t, err)

	for range 3 {
		_, err = votes.Transfer(ctx, service.TransferRequest{
			UserID: mallory.ID, IssueID: issue.ID, PositionID: ptr(b), PreviousPositionID: ptr(a),
			Privacy: model.PrivacySuperAnonymous,
		}, nil)
		assert.ErrorIs(t, err, service.ErrPreviousUnverified)
	}

	_, err = votes.Transfer(ctx, service.TransferRequest{
		UserID: mallory.ID, IssueID: issue.ID, PositionID: ptr(a), PreviousPositionID: ptr(foreign),
		Privacy: model.PrivacySuperAnonymous,
	}, nil)
	assert.ErrorIs(t, err, service.ErrPreviousUnverified)

	// A tracking row is only as good as its seal.
	require.NoError(t, votes.CreateTracking(ctx, mallory.ID, issue.ID, ptr(a)))
	_, err = votes.Transfer(ctx, service.TransferRequest{
		UserID: mallory.ID, IssueID: issue.ID, PositionID: ptr(b), Privacy: model.PrivacySuperAnonymous,
	}, nil)
	assert.ErrorIs(t, err, service.ErrPreviousUnverified)

	assert.Equal(t, 1, testutil.Votes(t, database, a))
	assert.Equal(t, 1, testutil.Votes(t, database, b))
	assert.Equal(t, 0, testutil.Votes(t, database, foreign))
	assertBalanced(t, database, issue.ID)
}

func TestTransferSuperAnonymousNeedsPrevious(t *testing.T) {
	database := testutil.NewDB(t)
	votes := newVoteService(database, events.NewLocalBus(), true)
	ctx := context.Background()
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	issue, positions := testutil.CreateIssue(t, database, user.ID, "Yes", "No")
	a, b := positions[0].ID, positions[1].ID

	_, err := votes.Transfer(ctx, service.TransferRequest{
		UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a), Privacy: model.PrivacySuperAnonymous,
	}, nil)
	require.NoError(t, err)

	// Neither a hint nor a tracking row: refuse rather than guess.
	for range 2 {
		_, err = votes.Transfer(ctx, service.TransferRequest{
			UserID: user.ID, IssueID: issue.ID, PositionID: ptr(b), Privacy: model.PrivacySuperAnonymous,
		}, nil)
		assert.ErrorIs(t, err, service.ErrPreviousRequired)
	}
	assert.Equal(t, 1, testutil.Votes(t, database, a))
	assert.Equal(t, 0, testutil.Votes(t, database, b))

	result, err := votes.Transfer(ctx, service.TransferRequest{
		UserID: user.ID, IssueID: issue.ID, PositionID: ptr(b), PreviousPositionID: ptr(a),
		Privacy: model.PrivacySuperAnonymous,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, service.ActionUpdated, result.Action)
	assert.Equal(t, map[string]int{a: 0, b: 1}, result.Counts)
	assertBalanced(t, database, issue.ID)
}

func TestTransferSuperAnonymousRepeat(t *testing.T) {
	ctx := context.Background()

	for _, withdraw := range []bool{true, false} {
		database := testutil.NewDB(t)
		votes := newVoteService(database, events.NewLocalBus(), withdraw)
		user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
		issue, positions := testutil.CreateIssue(t, database, user.ID, "Yes")
		a := positions[0].ID

		_, err := votes.Transfer(ctx, service.TransferRequest{
			UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a), Privacy: model.PrivacySuperAnonymous,
		}, nil)
		require.NoError(t, err)

		result, err := votes.Transfer(ctx, service.TransferRequest{
			UserID: user.ID, IssueID: issue.ID, PositionID: ptr(a), PreviousPositionID: ptr(a),
			Privacy: model.PrivacySuperAnonymous,
		}, nil)
		require.NoError(t, err)
		if withdraw {
			assert.Equal(t, service.ActionRemoved, result.Action)
			assert.Equal(t, 0, testutil.Votes(t, database, a))
		} else {
			assert.Equal(t, service.ActionUnchanged, result.Action)
			assert.Equal(t, 1, testutil.Votes(t, database, a))
		}
		assertBalanced(t, database, issue.ID)
	}
}

func TestTransferRejectsUnknownPrivacy(t *testing.T) {
	votes := newVoteService(testutil.NewDB(t), nil, true)

	_, err := votes.Transfer(context.Background(), service.TransferRequest{
		UserID: "u", IssueID: "demo-issue", PositionID: ptr("p1"), Privacy: "secret",
	}, nil)
	assert.ErrorIs(t, err, service.ErrInvalidPrivacy)
}

func TestTransferMock(t *testing.T) {
	votes := newVoteService(testutil.NewDB(t), nil, true)
	ctx := context.Background()
	tally := service.NewTally(map[string]int{"p1": 10, "p2": 4})

	result, err := votes.Transfer(ctx, service.TransferRequest{UserID: "u1", IssueID: "demo-issue", PositionID: ptr("p1")}, tally)
	require.NoError(t, err)
	assert.True(t, result.Mock)
	assert.Equal(t, service.ActionRecorded, result.Action)
	assert.Equal(t, 11, tally.Count("p1"))

	result, err = votes.Transfer(ctx, service.TransferRequest{UserID: "u1", IssueID: "demo-issue", PositionID: ptr("p2")}, tally)
	require.NoError(t, err)
	assert.Equal(t, service.ActionUpdated, result.Action)
	assert.Equal(t, map[string]int{"p1": 10, "p2": 5}, result.Counts)

	record, err := votes.CurrentVote(ctx, "u1", "demo-issue", tally)
	require.NoError(t, err)
	assert.Equal(t, "p2", *record.PositionID)

	result, err = votes.Transfer(ctx, service.TransferRequest{UserID: "u1", IssueID: "demo-issue"}, tally)
	require.NoError(t, err)
	assert.Equal(t, service.ActionRemoved, result.Action)
	assert.Equal(t, 4, tally.Count("p2"))

	// A nil tally routes mock ids to the shared demo tally.
	_, err = votes.Transfer(ctx, service.TransferRequest{UserID: "u2", IssueID: "demo-issue", PositionID: ptr("p9")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, votes.Demo().Count("p9"))
	assert.Equal(t, 0, tally.Count("p9"))
}

func TestCastGhostVote(t *testing.T) {
	database := testutil.NewDB(t)
	votes := newVoteService(database, nil, true)
	ctx := context.Background()
	user := testutil.CreateUser(t, database, "owner@example.com", model.RoleBasic)
	_, positions := testutil.CreateIssue(t, database, user.ID, "Yes")

	n, err := votes.CastGhostVote(ctx, positions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = votes.CastGhostVote(ctx, "demo-position")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, votes.Demo().Count("demo-position"))
}

func TestIsStoreID(t *testing.T) {
	assert.True(t, service.IsStoreID("0b8e4a8c-6f4c-4d7e-9a59-3c1fb2f0b0d1"))
	assert.False(t, service.IsStoreID("issue-1"))
}
