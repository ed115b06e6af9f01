package repository

import (
	"context"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ReportRepository appends moderation reports and contact-form messages.
type ReportRepository interface {
	CreateIssueReport(ctx context.Context, report *model.IssueReport) error
	CreatePositionReport(ctx context.Context, report *model.PositionReport) error
	CreateSiteIssue(ctx context.Context, issue *model.SiteIssue) error
}

type reportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) CreateIssueReport(ctx context.Context, report *model.IssueReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	report.CreatedAt = now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issue_reports (id, issue_id, reporter_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		report.ID, report.IssueID, report.ReporterID, report.Reason, report.CreatedAt)
	return err
}

func (r *reportRepository) CreatePositionReport(ctx context.Context, report *model.PositionReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	report.CreatedAt = now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO position_reports (id, position_id, reporter_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		report.ID, report.PositionID, report.ReporterID, report.Reason, report.CreatedAt)
	return err
}

func (r *reportRepository) CreateSiteIssue(ctx context.Context, issue *model.SiteIssue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	issue.CreatedAt = now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO site_issues (id, reporter_id, email, subject, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		issue.ID, issue.ReporterID, issue.Email, issue.Subject, issue.Message, issue.CreatedAt)
	return err
}
