package repository

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrVoteNotFound = errors.New("vote not found")
	ErrAlreadyVoted = errors.New("already voted for this position")
	// ErrPreviousUnknown means a super-anonymous vote moved without naming
	// the position it had credited.
	ErrPreviousUnknown = errors.New("previous position unknown")
	// ErrPreviousMismatch means the named previous position does not match
	// the seal kept on the super-anonymous record.
	ErrPreviousMismatch = errors.New("previous position does not match the recorded vote")
)

// TransferParams describes one vote move for a (user, issue) pair.
type TransferParams struct {
	UserID  string
	IssueID string
	// Target is the position to credit. Nil removes the current vote.
	Target *string
	// PreviousHint names the previously credited position when the stored
	// record cannot (super-anonymous records keep no position id).
	PreviousHint *string
	// PreviousSeal is the caller's seal for PreviousHint. It must equal the
	// seal stored on a super-anonymous record before anything is decremented.
	PreviousSeal string
	// TargetSeal is stored on new super-anonymous records in place of the position.
	TargetSeal string
	Privacy    string
	// WithdrawOnRepeat turns a repeat vote for the current position into a removal.
	// When false a repeat vote fails with ErrAlreadyVoted and nothing changes.
	WithdrawOnRepeat bool
}

// TransferOutcome reports what the transaction did and the counters it touched.
type TransferOutcome struct {
	Previous   *model.VoteRecord
	PreviousID *string
	Current    *model.VoteRecord
	Counts     map[string]int
}

type VoteRepository interface {
	Transfer(ctx context.Context, params TransferParams) (*TransferOutcome, error)
	ByUserAndIssue(ctx context.Context, userID, issueID string) (*model.VoteRecord, error)
}

type voteRepository struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Transfer moves the user's vote inside one transaction: decrement the old
// position (never below zero), replace the vote record, increment the new
// position. Any failure rolls every step back.
func (r *voteRepository) Transfer(ctx context.Context, params TransferParams) (*TransferOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	outcome := &TransferOutcome{Counts: map[string]int{}}

	existing := &model.VoteRecord{}
	err = tx.GetContext(ctx, existing, `
		SELECT * FROM user_votes WHERE user_id = $1 AND issue_id = $2`,
		params.UserID, params.IssueID)
	switch {
	case err == sql.ErrNoRows:
		existing = nil
	case err != nil:
		return nil, err
	}

	if existing != nil {
		outcome.Previous = existing
		outcome.PreviousID = existing.PositionID
		if outcome.PreviousID == nil {
			err = verifyHint(ctx, tx, existing, params)
			if err != nil {
				return nil, err
			}
			outcome.PreviousID = params.PreviousHint
		}
	}

	target := params.Target
	if target != nil {
		var issueID string
		err = tx.GetContext(ctx, &issueID, `SELECT issue_id FROM positions WHERE id = $1`, *target)
		if err == sql.ErrNoRows || (err == nil && issueID != params.IssueID) {
			return nil, ErrPositionNotFound
		}
		if err != nil {
			return nil, err
		}

		repeat := existing != nil && outcome.PreviousID != nil &&
			*outcome.PreviousID == *target && existing.Privacy == params.Privacy
		if repeat {
			if !params.WithdrawOnRepeat {
				return nil, ErrAlreadyVoted
			}
			target = nil
		}
	}

	if existing == nil && target == nil {
		return nil, ErrVoteNotFound
	}

	if outcome.PreviousID != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE positions
			SET votes = CASE WHEN votes > 0 THEN votes - 1 ELSE 0 END
			WHERE id = $1`, *outcome.PreviousID)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement previous position: %w", err)
		}
	}

	if existing != nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM user_votes WHERE user_id = $1 AND issue_id = $2`,
			params.UserID, params.IssueID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete previous vote: %w", err)
		}
	}

	if target != nil {
		record := &model.VoteRecord{
			UserID:     params.UserID,
			IssueID:    params.IssueID,
			PositionID: target,
			Privacy:    params.Privacy,
			CreatedAt:  now(),
		}
		if params.Privacy == model.PrivacySuperAnonymous {
			if params.TargetSeal == "" {
				return nil, errors.New("super-anonymous vote without a seal")
			}
			record.PositionID = nil
			record.CreditSeal = &params.TargetSeal
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_votes (user_id, issue_id, position_id, credit_seal, privacy, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			record.UserID, record.IssueID, record.PositionID, record.CreditSeal, record.Privacy, record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert vote: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE positions SET votes = votes + 1 WHERE id = $1`, *target)
		if err != nil {
			return nil, fmt.Errorf("failed to increment position: %w", err)
		}
		outcome.Current = record
	}

	var touched []string
	if outcome.PreviousID != nil {
		touched = append(touched, *outcome.PreviousID)
	}
	if target != nil && (outcome.PreviousID == nil || *target != *outcome.PreviousID) {
		touched = append(touched, *target)
	}
	if len(touched) > 0 {
		args := make([]any, len(touched))
		for i, id := range touched {
			args[i] = id
		}

		var rows []struct {
			ID    string `db:"id"`
			Votes int    `db:"votes"`
		}
		query := fmt.Sprintf(`SELECT id, votes FROM positions WHERE id IN (%s)`, placeholders(len(touched), 1))
		err = tx.SelectContext(ctx, &rows, query, args...)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			outcome.Counts[row.ID] = row.Votes
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// verifyHint accepts the hint for a super-anonymous record only when it names
// a position of the issue and its seal matches the stored one.
func verifyHint(ctx context.Context, tx *sqlx.Tx, existing *model.VoteRecord, params TransferParams) error {
	if params.PreviousHint == nil {
		return ErrPreviousUnknown
	}
	if existing.CreditSeal == nil || params.PreviousSeal == "" ||
		subtle.ConstantTimeCompare([]byte(*existing.CreditSeal), []byte(params.PreviousSeal)) != 1 {
		return ErrPreviousMismatch
	}

	var issueID string
	err := tx.GetContext(ctx, &issueID, `SELECT issue_id FROM positions WHERE id = $1`, *params.PreviousHint)
	if err == sql.ErrNoRows || (err == nil && issueID != params.IssueID) {
		return ErrPreviousMismatch
	}
	return err
}

func (r *voteRepository) ByUserAndIssue(ctx context.Context, userID, issueID string) (*model.VoteRecord, error) {
	record := &model.VoteRecord{}
	err := r.db.GetContext(ctx, record, `
		SELECT * FROM user_votes WHERE user_id = $1 AND issue_id = $2`, userID, issueID)
	if err == sql.ErrNoRows {
		return nil, ErrVoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
