package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/validation"
)

type SiteIssueRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type ClientErrorRequest struct {
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Context json.RawMessage `json:"context"`
}

// ReportService stores moderation reports and notifies the moderators.
// Rows are append-only; a failed notification never removes the row.
type ReportService struct {
	reportRepository      repository.ReportRepository
	issueRepository       repository.IssueRepository
	positionRepository    repository.PositionRepository
	systemErrorRepository repository.SystemErrorRepository
	emailService          *EmailService
	recipients            []string
}

func NewReportService(
	reportRepository repository.ReportRepository,
	issueRepository repository.IssueRepository,
	positionRepository repository.PositionRepository,
	systemErrorRepository repository.SystemErrorRepository,
	emailService *EmailService,
	recipients []string,
) *ReportService {
	return &ReportService{
		reportRepository:      reportRepository,
		issueRepository:       issueRepository,
		positionRepository:    positionRepository,
		systemErrorRepository: systemErrorRepository,
		emailService:          emailService,
		recipients:            recipients,
	}
}

func (s *ReportService) ReportIssue(ctx context.Context, reporterID, issueID, reason string) (*model.IssueReport, error) {
	err := validation.ValidateReason(reason)
	if err != nil {
		return nil, err
	}

	issue, err := s.issueRepository.ByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	report := &model.IssueReport{IssueID: issueID, ReporterID: reporterID, Reason: strings.TrimSpace(reason)}
	err = s.reportRepository.CreateIssueReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue report: %w", err)
	}

	slog.Info("issue reported", "issue_id", issueID, "reporter_id", reporterID)
	s.notify(ctx, "issue", "Issue reported: "+issue.Title,
		fmt.Sprintf("Issue %s (%s)\nReporter: %s\n\n%s", issue.Title, issue.ID, reporterID, report.Reason))

	return report, nil
}

func (s *ReportService) ReportPosition(ctx context.Context, reporterID, positionID, reason string) (*model.PositionReport, error) {
	err := validation.ValidateReason(reason)
	if err != nil {
		return nil, err
	}

	position, err := s.positionRepository.ByID(ctx, positionID)
	if err != nil {
		return nil, err
	}

	report := &model.PositionReport{PositionID: positionID, ReporterID: reporterID, Reason: strings.TrimSpace(reason)}
	err = s.reportRepository.CreatePositionReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("failed to create position report: %w", err)
	}

	slog.Info("position reported", "position_id", positionID, "reporter_id", reporterID)
	s.notify(ctx, "position", "Position reported: "+position.Title,
		fmt.Sprintf("Position %s (%s) on issue %s\nReporter: %s\n\n%s",
			position.Title, position.ID, position.IssueID, reporterID, report.Reason))

	return report, nil
}

// ReportSiteIssue stores a contact-form message. reporterID is empty for guests.
func (s *ReportService) ReportSiteIssue(ctx context.Context, reporterID string, req SiteIssueRequest) (*model.SiteIssue, error) {
	email := validation.NormalizeEmail(req.Email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateText("subject", req.Subject, 200)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateText("message", req.Message, 5000)
	if err != nil {
		return nil, err
	}

	issue := &model.SiteIssue{
		Email:   email,
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	if reporterID != "" {
		issue.ReporterID = &reporterID
	}

	err = s.reportRepository.CreateSiteIssue(ctx, issue)
	if err != nil {
		return nil, fmt.Errorf("failed to create site issue: %w", err)
	}

	s.notify(ctx, "site", issue.Subject, fmt.Sprintf("From: %s\n\n%s", issue.Email, issue.Message))
	return issue, nil
}

// RecordClientError appends a client-reported failure to the system errors log.
func (s *ReportService) RecordClientError(ctx context.Context, req ClientErrorRequest) error {
	err := validation.ValidateText("message", req.Message, 2000)
	if err != nil {
		return err
	}

	level := strings.ToLower(strings.TrimSpace(req.Level))
	if level == "" {
		level = "error"
	}

	details := "{}"
	if len(req.Context) > 0 && json.Valid(req.Context) {
		details = string(req.Context)
	}

	return s.systemErrorRepository.Create(ctx, &model.SystemError{
		Level:   level,
		Message: strings.TrimSpace(req.Message),
		Context: details,
	})
}

// RecentErrors lists the newest system errors for the admin console.
func (s *ReportService) RecentErrors(ctx context.Context, limit int) ([]*model.SystemError, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.systemErrorRepository.Recent(ctx, limit)
}

func (s *ReportService) notify(ctx context.Context, kind, subject, details string) {
	err := s.emailService.SendReportNotification(ctx, s.recipients, kind, subject, details)
	if err != nil {
		slog.Warn("failed to send report notification", "error", err, "kind", kind)
	}
}
