package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/metrics"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/google/uuid"
)

var (
	ErrWithdrawalDisabled = errors.New("votes cannot be withdrawn once cast")
	ErrNoVote             = errors.New("no vote to remove")
)

var (
	ErrInvalidPrivacy     error = &validation.Error{Message: "privacy must be public or super_anonymous"}
	ErrPreviousRequired   error = &validation.Error{Message: "previous_position_id is required to change a super-anonymous vote"}
	ErrPreviousUnverified error = &validation.Error{Message: "previous_position_id does not match your recorded vote"}
)

// Transfer actions.
const (
	ActionRecorded  = "recorded"
	ActionUpdated   = "updated"
	ActionRemoved   = "removed"
	ActionUnchanged = "unchanged"
)

// TransferRequest moves a user's single per-issue vote.
type TransferRequest struct {
	UserID  string
	IssueID string
	// PositionID is the target. Nil removes the vote.
	PositionID *string
	// PreviousPositionID names the previously credited position for
	// super-anonymous votes, whose records do not keep it.
	PreviousPositionID *string
	Privacy            string
}

type TransferResult struct {
	Action             string         `json:"action"`
	Message            string         `json:"message"`
	PositionID         *string        `json:"position_id"`
	PreviousPositionID *string        `json:"previous_position_id"`
	Counts             map[string]int `json:"counts"`
	Mock               bool           `json:"mock,omitempty"`
}

type VoteService struct {
	voteRepository         repository.VoteRepository
	voteTrackingRepository repository.VoteTrackingRepository
	positionRepository     repository.PositionRepository
	bus                    events.Bus
	allowWithdrawal        bool
	sealKey                []byte
	demo                   *Tally
}

func NewVoteService(
	voteRepository repository.VoteRepository,
	voteTrackingRepository repository.VoteTrackingRepository,
	positionRepository repository.PositionRepository,
	bus events.Bus,
	allowWithdrawal bool,
	sealKey string,
) *VoteService {
	return &VoteService{
		voteRepository:         voteRepository,
		voteTrackingRepository: voteTrackingRepository,
		positionRepository:     positionRepository,
		bus:                    bus,
		allowWithdrawal:        allowWithdrawal,
		sealKey:                []byte(sealKey),
		demo:                   NewTally(nil),
	}
}

// IsStoreID reports whether id has the store's identifier format. Anything
// else is placeholder content handled by the mock variant.
func IsStoreID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Demo returns the process-wide tally used for placeholder content.
func (s *VoteService) Demo() *Tally {
	return s.demo
}

// Transfer moves the vote and copies the resulting counters into tally.
// A nil tally uses a fresh one for persisted ids and the demo tally for mock ids.
func (s *VoteService) Transfer(ctx context.Context, req TransferRequest, tally *Tally) (*TransferResult, error) {
	if req.Privacy == "" {
		req.Privacy = model.PrivacyPublic
	}
	if !model.IsValidPrivacy(req.Privacy) {
		return nil, ErrInvalidPrivacy
	}
	if req.PositionID == nil && !s.allowWithdrawal {
		return nil, ErrWithdrawalDisabled
	}

	if s.isMock(req) {
		if tally == nil {
			tally = s.demo
		}
		return s.transferMock(req, tally), nil
	}

	if tally == nil {
		tally = NewTally(nil)
	}

	// Tracking rows are client written. The seal check below is what makes
	// either source trustworthy.
	hint := req.PreviousPositionID
	if hint == nil {
		tracking, err := s.voteTrackingRepository.Get(ctx, req.UserID, req.IssueID)
		if err == nil {
			hint = tracking.PositionID
		}
	}

	params := repository.TransferParams{
		UserID:           req.UserID,
		IssueID:          req.IssueID,
		Target:           req.PositionID,
		PreviousHint:     hint,
		Privacy:          req.Privacy,
		WithdrawOnRepeat: s.allowWithdrawal,
	}
	if hint != nil {
		params.PreviousSeal = s.seal(req.UserID, req.IssueID, *hint)
	}
	if req.PositionID != nil && req.Privacy == model.PrivacySuperAnonymous {
		params.TargetSeal = s.seal(req.UserID, req.IssueID, *req.PositionID)
	}

	outcome, err := s.voteRepository.Transfer(ctx, params)
	switch {
	case errors.Is(err, repository.ErrAlreadyVoted):
		return &TransferResult{
			Action:     ActionUnchanged,
			Message:    "You have already voted for this position",
			PositionID: req.PositionID,
			Counts:     tally.Snapshot(),
		}, nil
	case errors.Is(err, repository.ErrVoteNotFound):
		return nil, ErrNoVote
	case errors.Is(err, repository.ErrPreviousUnknown):
		return nil, ErrPreviousRequired
	case errors.Is(err, repository.ErrPreviousMismatch):
		slog.Warn("super-anonymous vote moved with a mismatched previous position", "issue_id", req.IssueID)
		return nil, ErrPreviousUnverified
	case err != nil:
		return nil, fmt.Errorf("failed to transfer vote: %w", err)
	}

	for id, n := range outcome.Counts {
		tally.Set(id, n)
	}

	result := &TransferResult{
		PreviousPositionID: outcome.PreviousID,
		Counts:             tally.Snapshot(),
	}
	switch {
	case outcome.Current == nil:
		result.Action = ActionRemoved
		result.Message = "Vote removed"
	case outcome.Previous == nil:
		result.Action = ActionRecorded
		result.Message = "Vote recorded"
		result.PositionID = req.PositionID
	default:
		result.Action = ActionUpdated
		result.Message = "Vote updated"
		result.PositionID = req.PositionID
	}

	metrics.VoteTransfers.WithLabelValues(result.Action, req.Privacy).Inc()
	slog.Debug("vote transferred", "issue_id", req.IssueID, "action", result.Action, "privacy", req.Privacy)

	publish(ctx, s.bus, events.TopicVoteCast, map[string]any{
		"issue_id": req.IssueID,
		"counts":   outcome.Counts,
	})

	return result, nil
}

// seal binds a super-anonymous vote to its position without storing the
// position. Only a caller who names the same position reproduces it.
func (s *VoteService) seal(userID, issueID, positionID string) string {
	mac := hmac.New(sha256.New, s.sealKey)
	mac.Write([]byte("vote-credit\x00" + userID + "\x00" + issueID + "\x00" + positionID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *VoteService) isMock(req TransferRequest) bool {
	if !IsStoreID(req.IssueID) {
		return true
	}
	if req.PositionID != nil && !IsStoreID(*req.PositionID) {
		return true
	}
	return req.PreviousPositionID != nil && !IsStoreID(*req.PreviousPositionID)
}

func (s *VoteService) transferMock(req TransferRequest, tally *Tally) *TransferResult {
	previous, current, repeated := tally.moveMock(req.UserID, req.IssueID, req.PositionID, s.allowWithdrawal)

	result := &TransferResult{Mock: true}
	if previous != "" {
		result.PreviousPositionID = &previous
	}
	if current != "" {
		result.PositionID = &current
	}

	switch {
	case repeated:
		result.Action = ActionUnchanged
		result.Message = "You have already voted for this position"
	case current == "":
		result.Action = ActionRemoved
		result.Message = "Vote removed"
	case previous == "":
		result.Action = ActionRecorded
		result.Message = "Vote recorded"
	default:
		result.Action = ActionUpdated
		result.Message = "Vote updated"
	}
	result.Counts = tally.Snapshot()

	metrics.VoteTransfers.WithLabelValues(result.Action, "mock").Inc()
	return result
}

// CurrentVote reads back the user's vote on an issue. Mock issues read from tally.
func (s *VoteService) CurrentVote(ctx context.Context, userID, issueID string, tally *Tally) (*model.VoteRecord, error) {
	if !IsStoreID(issueID) {
		if tally == nil {
			tally = s.demo
		}
		positionID, ok := tally.mockBallot(userID, issueID)
		if !ok {
			return nil, ErrNoVote
		}
		return &model.VoteRecord{UserID: userID, IssueID: issueID, PositionID: &positionID, Privacy: model.PrivacyPublic}, nil
	}

	record, err := s.voteRepository.ByUserAndIssue(ctx, userID, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrVoteNotFound) {
			return nil, ErrNoVote
		}
		return nil, err
	}
	return record, nil
}

// CastGhostVote credits a position without recording who voted.
func (s *VoteService) CastGhostVote(ctx context.Context, positionID string) (int, error) {
	if !IsStoreID(positionID) {
		s.demo.mu.Lock()
		s.demo.counts[positionID]++
		n := s.demo.counts[positionID]
		s.demo.mu.Unlock()
		return n, nil
	}

	votes, err := s.positionRepository.IncrementVotes(ctx, positionID)
	if err != nil {
		return 0, err
	}

	metrics.GhostVotes.Inc()
	return votes, nil
}

func (s *VoteService) CheckTracking(ctx context.Context, userID, issueID string) (*model.VoteTracking, error) {
	tracking, err := s.voteTrackingRepository.Get(ctx, userID, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrTrackingNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return tracking, nil
}

func (s *VoteService) CreateTracking(ctx context.Context, userID, issueID string, positionID *string) error {
	return s.voteTrackingRepository.Upsert(ctx, &model.VoteTracking{
		UserID:     userID,
		IssueID:    issueID,
		PositionID: positionID,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *VoteService) DeleteTracking(ctx context.Context, userID, issueID string) (bool, error) {
	return s.voteTrackingRepository.Delete(ctx, userID, issueID)
}
