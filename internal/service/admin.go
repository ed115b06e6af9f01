package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/validation"
)

const (
	ActionUpdateRole   = "updateRole"
	ActionUpdateStatus = "updateStatus"

	searchLimit   = 5
	topIssueLimit = 5
)

var ErrForbidden = errors.New("insufficient permissions")

var (
	ErrInvalidAction error = &validation.Error{Message: "action must be updateRole or updateStatus"}
	ErrInvalidRole   error = &validation.Error{Message: "invalid role"}
	ErrInvalidStatus error = &validation.Error{Message: "status must be pending, active or deactivated"}
	ErrInvalidRange  error = &validation.Error{Message: "filter must be today, week, month, year or custom with start and end"}
)

type ManageUserRequest struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
	Value  string `json:"value"`
}

type UserPage struct {
	Users      []*model.UserWithProfile `json:"users"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalPages int                      `json:"total_pages"`
}

type LookupResult struct {
	Exists bool                   `json:"exists"`
	User   *model.UserWithProfile `json:"user,omitempty"`
}

// AdminService backs the admin endpoints. Every call re-reads the actor's
// role from the store; nothing about authorization is cached.
type AdminService struct {
	userRepository      repository.UserRepository
	profileRepository   repository.ProfileRepository
	analyticsRepository repository.AnalyticsRepository
	cache               *CacheService
	adminRoles          []string
	cacheTTL            time.Duration
	now                 func() time.Time
}

func NewAdminService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	analyticsRepository repository.AnalyticsRepository,
	cache *CacheService,
	adminRoles []string,
	cacheTTL time.Duration,
) *AdminService {
	return &AdminService{
		userRepository:      userRepository,
		profileRepository:   profileRepository,
		analyticsRepository: analyticsRepository,
		cache:               cache,
		adminRoles:          adminRoles,
		cacheTTL:            cacheTTL,
		now:                 time.Now,
	}
}

// Authorize returns the actor's profile if its role is an admin role.
func (s *AdminService) Authorize(ctx context.Context, actorID string) (*model.Profile, error) {
	profile, err := s.profileRepository.ByUserID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	for _, role := range s.adminRoles {
		if profile.Role == role {
			return profile, nil
		}
	}
	return nil, ErrForbidden
}

func (s *AdminService) ListUsers(ctx context.Context, actorID string, page, pageSize int) (*UserPage, error) {
	_, err := s.Authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}

	page, pageSize = NormalizePage(page, pageSize)

	total, err := s.userRepository.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	users, err := s.userRepository.List(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	merged, err := s.merge(ctx, users)
	if err != nil {
		return nil, err
	}

	return &UserPage{
		Users:      merged,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func (s *AdminService) ManageUser(ctx context.Context, actorID string, req ManageUserRequest) (*model.Profile, error) {
	_, err := s.Authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" {
		return nil, &validation.Error{Message: "userId is required"}
	}

	var profile *model.Profile
	switch req.Action {
	case ActionUpdateRole:
		if !model.IsValidRole(req.Value) {
			return nil, ErrInvalidRole
		}
		profile, err = s.profileRepository.UpdateRole(ctx, req.UserID, req.Value)
	case ActionUpdateStatus:
		if !model.IsValidProfileStatus(req.Value) {
			return nil, ErrInvalidStatus
		}
		profile, err = s.profileRepository.UpdateStatus(ctx, req.UserID, req.Value)
	default:
		return nil, ErrInvalidAction
	}
	if err != nil {
		return nil, err
	}

	slog.Info("user updated by admin", "actor_id", actorID, "user_id", req.UserID, "action", req.Action, "value", req.Value)
	return profile, nil
}

func (s *AdminService) LookupUser(ctx context.Context, actorID, email string) (*LookupResult, error) {
	_, err := s.Authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}

	email = validation.NormalizeEmail(email)
	err = validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &LookupResult{Exists: false}, nil
		}
		return nil, err
	}

	merged, err := s.withProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LookupResult{Exists: true, User: merged}, nil
}

func (s *AdminService) LookupUserProfile(ctx context.Context, actorID, userID string) (*model.UserWithProfile, error) {
	_, err := s.Authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withProfile(ctx, user)
}

// SearchUsers matches email or name and returns at most five users.
func (s *AdminService) SearchUsers(ctx context.Context, actorID, term string) ([]*model.UserWithProfile, error) {
	_, err := s.Authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, &validation.Error{Message: "searchTerm is required"}
	}

	users, err := s.userRepository.Search(ctx, term, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return s.merge(ctx, users)
}

func (s *AdminService) withProfile(ctx context.Context, user *model.User) (*model.UserWithProfile, error) {
	profile, err := s.profileRepository.ByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, err
	}
	return model.MergeUserProfile(user, profile), nil
}

// merge attaches profiles fetched in one bulk query, keeping the user order.
func (s *AdminService) merge(ctx context.Context, users []*model.User) ([]*model.UserWithProfile, error) {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	profiles, err := s.profileRepository.ByUserIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	merged := make([]*model.UserWithProfile, len(users))
	for i, u := range users {
		merged[i] = model.MergeUserProfile(u, profiles[u.ID])
	}
	return merged, nil
}
