package handler

import (
	"errors"
	"net/http"

	"github.com/dirigovotes/dirigo/internal/ctxkeys"
	"github.com/dirigovotes/dirigo/internal/middleware"
	"github.com/dirigovotes/dirigo/internal/service"
)

type VoteHandler struct {
	voteService *service.VoteService
}

func NewVoteHandler(voteService *service.VoteService) *VoteHandler {
	return &VoteHandler{voteService: voteService}
}

type voteRequest struct {
	PositionID         *string `json:"position_id"`
	PreviousPositionID *string `json:"previous_position_id"`
	Privacy            string  `json:"privacy"`
}

// Cast moves the caller's vote on an issue. A null position_id withdraws it.
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.voteService.Transfer(r.Context(), service.TransferRequest{
		UserID:             ctxkeys.UserID(r.Context()),
		IssueID:            r.PathValue("id"),
		PositionID:         req.PositionID,
		PreviousPositionID: req.PreviousPositionID,
		Privacy:            req.Privacy,
	}, nil)
	if err != nil {
		if errors.Is(err, service.ErrWithdrawalDisabled) {
			middleware.JSON(w, http.StatusOK, service.TransferResult{
				Action:             service.ActionUnchanged,
				Message:            "Votes cannot be withdrawn once cast",
				PreviousPositionID: req.PreviousPositionID,
			})
			return
		}
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, result)
}

// Current returns the caller's vote on an issue, or null.
func (h *VoteHandler) Current(w http.ResponseWriter, r *http.Request) {
	record, err := h.voteService.CurrentVote(r.Context(), ctxkeys.UserID(r.Context()), r.PathValue("id"), nil)
	if err != nil && !errors.Is(err, service.ErrNoVote) {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"vote": record})
}

func (h *VoteHandler) Ghost(w http.ResponseWriter, r *http.Request) {
	positionID := r.PathValue("id")
	votes, err := h.voteService.CastGhostVote(r.Context(), positionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"position_id": positionID, "votes": votes})
}

type trackingRequest struct {
	UserID     string  `json:"user_id"`
	IssueID    string  `json:"issue_id"`
	PositionID *string `json:"position_id"`
}

func (h *VoteHandler) CreateTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if !decode(w, r, &req) {
		return
	}

	userID := ctxkeys.UserID(r.Context())
	if req.UserID != "" && req.UserID != userID {
		middleware.Error(w, http.StatusForbidden, "cannot track votes for another user")
		return
	}
	if !service.IsStoreID(req.IssueID) {
		middleware.Error(w, http.StatusBadRequest, "issue_id must be a stored issue")
		return
	}

	err := h.voteService.CreateTracking(r.Context(), userID, req.IssueID, req.PositionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (h *VoteHandler) CheckTracking(w http.ResponseWriter, r *http.Request) {
	tracking, err := h.voteService.CheckTracking(r.Context(), ctxkeys.UserID(r.Context()), queryString(r, "issue_id", "issueId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]any{"exists": tracking != nil, "tracking": tracking})
}

func (h *VoteHandler) DeleteTracking(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.voteService.DeleteTracking(r.Context(), ctxkeys.UserID(r.Context()), queryString(r, "issue_id", "issueId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}
