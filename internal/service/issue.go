package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dirigovotes/dirigo/internal/markdown"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/validation"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var ErrInvalidScope error = &validation.Error{Message: "scope must be local, state or international"}

type CreateIssueRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Scope    string `json:"scope"`
}

type CreatePositionRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type IssuePage struct {
	Issues     []*model.Issue `json:"issues"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

type IssueService struct {
	issueRepository    repository.IssueRepository
	positionRepository repository.PositionRepository
	renderer           *markdown.Renderer
}

func NewIssueService(issueRepository repository.IssueRepository, positionRepository repository.PositionRepository, renderer *markdown.Renderer) *IssueService {
	return &IssueService{
		issueRepository:    issueRepository,
		positionRepository: positionRepository,
		renderer:           renderer,
	}
}

// NormalizePage clamps paging input to the defaults used by list endpoints.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func totalPages(total, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}

func (s *IssueService) Create(ctx context.Context, userID string, req CreateIssueRequest) (*model.Issue, error) {
	err := validation.ValidateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateText("category", req.Category, 50)
	if err != nil {
		return nil, err
	}
	scope := strings.ToLower(strings.TrimSpace(req.Scope))
	if !model.IsValidScope(scope) {
		return nil, ErrInvalidScope
	}

	issue := &model.Issue{
		Title:     strings.TrimSpace(req.Title),
		Category:  strings.ToLower(strings.TrimSpace(req.Category)),
		Scope:     scope,
		CreatedBy: userID,
	}

	err = s.issueRepository.Create(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	slog.Info("issue created", "issue_id", issue.ID, "user_id", userID)
	return s.decorateIssue(issue), nil
}

func (s *IssueService) ByID(ctx context.Context, id string) (*model.Issue, error) {
	issue, err := s.issueRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorateIssue(issue), nil
}

func (s *IssueService) List(ctx context.Context, filter model.IssueFilter) (*IssuePage, error) {
	filter.Page, filter.PageSize = NormalizePage(filter.Page, filter.PageSize)
	if filter.Scope != "" && !model.IsValidScope(filter.Scope) {
		return nil, ErrInvalidScope
	}
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))

	issues, total, err := s.issueRepository.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	for _, issue := range issues {
		s.decorateIssue(issue)
	}

	return &IssuePage{
		Issues:     issues,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages(total, filter.PageSize),
	}, nil
}

// Delete removes an issue the user created.
func (s *IssueService) Delete(ctx context.Context, userID, id string) error {
	err := s.issueRepository.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	slog.Info("issue deleted", "issue_id", id, "user_id", userID)
	return nil
}

func (s *IssueService) CreatePosition(ctx context.Context, userID, issueID string, req CreatePositionRequest) (*model.Position, error) {
	err := validation.ValidateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateText("content", req.Content, 10000)
	if err != nil {
		return nil, err
	}

	_, err = s.issueRepository.ByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	position := &model.Position{
		IssueID:  issueID,
		AuthorID: userID,
		Title:    strings.TrimSpace(req.Title),
		Content:  strings.TrimSpace(req.Content),
	}

	err = s.positionRepository.Create(ctx, position)
	if err != nil {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}

	return s.decoratePosition(position), nil
}

func (s *IssueService) Position(ctx context.Context, id string) (*model.Position, error) {
	position, err := s.positionRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decoratePosition(position), nil
}

func (s *IssueService) Positions(ctx context.Context, issueID string) ([]*model.Position, error) {
	_, err := s.issueRepository.ByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	positions, err := s.positionRepository.ByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	for _, p := range positions {
		s.decoratePosition(p)
	}
	return positions, nil
}

func (s *IssueService) decorateIssue(issue *model.Issue) *model.Issue {
	issue.CategoryLabel = CategoryLabel(issue.Category)
	return issue
}

func (s *IssueService) decoratePosition(position *model.Position) *model.Position {
	rendered, err := s.renderer.Render(position.Content)
	if err != nil {
		slog.Warn("failed to render position content", "error", err, "position_id", position.ID)
		return position
	}
	position.ContentHTML = rendered.HTML
	position.Summary = rendered.Summary
	return position
}

// CategoryLabel turns "public-safety" or "public_safety" into "Public Safety".
func CategoryLabel(category string) string {
	label := strings.NewReplacer("-", " ", "_", " ").Replace(category)
	return cases.Title(language.English).String(label)
}
