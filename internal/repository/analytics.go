package repository

import (
	"context"
	"time"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/jmoiron/sqlx"
)

// AnalyticsRepository runs the read-only aggregate queries behind the admin dashboard.
type AnalyticsRepository interface {
	Overview(ctx context.Context, from, to time.Time) (*model.AnalyticsOverview, error)
	SignupTimes(ctx context.Context, from, to time.Time) ([]time.Time, error)
	VoteTimes(ctx context.Context, from, to time.Time) ([]time.Time, error)
	TopIssues(ctx context.Context, limit int) ([]model.TopIssue, error)
	RoleDistribution(ctx context.Context) ([]model.RoleCount, error)
}

type analyticsRepository struct {
	db *sqlx.DB
}

func NewAnalyticsRepository(db *sqlx.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) Overview(ctx context.Context, from, to time.Time) (*model.AnalyticsOverview, error) {
	from, to = from.UTC(), to.UTC()
	overview := &model.AnalyticsOverview{}

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&overview.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&overview.ActiveUsers, `SELECT COUNT(*) FROM profiles WHERE status = $1`, []any{model.ProfileStatusActive}},
		{&overview.NewUsers, `SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2`, []any{from, to}},
		{&overview.TotalIssues, `SELECT COUNT(*) FROM issues WHERE created_at >= $1 AND created_at < $2`, []any{from, to}},
		{&overview.TotalPositions, `SELECT COUNT(*) FROM positions WHERE created_at >= $1 AND created_at < $2`, []any{from, to}},
		{&overview.TotalVotes, `SELECT COUNT(*) FROM user_votes WHERE created_at >= $1 AND created_at < $2`, []any{from, to}},
		{&overview.TotalReports, `
			SELECT (SELECT COUNT(*) FROM issue_reports WHERE created_at >= $1 AND created_at < $2)
			     + (SELECT COUNT(*) FROM position_reports WHERE created_at >= $1 AND created_at < $2)`, []any{from, to}},
	}

	for _, c := range counts {
		err := r.db.GetContext(ctx, c.dest, c.query, c.args...)
		if err != nil {
			return nil, err
		}
	}

	return overview, nil
}

func (r *analyticsRepository) SignupTimes(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.SelectContext(ctx, &times, `
		SELECT created_at FROM users WHERE created_at >= $1 AND created_at < $2`, from.UTC(), to.UTC())
	return times, err
}

func (r *analyticsRepository) VoteTimes(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.SelectContext(ctx, &times, `
		SELECT created_at FROM user_votes WHERE created_at >= $1 AND created_at < $2`, from.UTC(), to.UTC())
	return times, err
}

func (r *analyticsRepository) TopIssues(ctx context.Context, limit int) ([]model.TopIssue, error) {
	issues := []model.TopIssue{}
	err := r.db.SelectContext(ctx, &issues, `
		SELECT i.id AS issue_id, i.title AS title, COALESCE(SUM(p.votes), 0) AS votes
		FROM issues i
		LEFT JOIN positions p ON p.issue_id = i.id
		GROUP BY i.id, i.title
		ORDER BY votes DESC, i.title
		LIMIT $1`, limit)
	return issues, err
}

func (r *analyticsRepository) RoleDistribution(ctx context.Context) ([]model.RoleCount, error) {
	roles := []model.RoleCount{}
	err := r.db.SelectContext(ctx, &roles, `
		SELECT role, COUNT(*) AS count FROM profiles GROUP BY role ORDER BY role`)
	return roles, err
}
