package model

import "time"

const (
	AnalyticsToday  = "today"
	AnalyticsWeek   = "week"
	AnalyticsMonth  = "month"
	AnalyticsYear   = "year"
	AnalyticsCustom = "custom"
)

type AnalyticsFilter struct {
	Range string     `json:"range"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

type AnalyticsOverview struct {
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"`
	NewUsers       int `json:"new_users"`
	TotalIssues    int `json:"total_issues"`
	TotalPositions int `json:"total_positions"`
	TotalVotes     int `json:"total_votes"`
	TotalReports   int `json:"total_reports"`
}

type AnalyticsPoint struct {
	Date    string `json:"date"`
	Signups int    `json:"signups"`
	Votes   int    `json:"votes"`
}

type TopIssue struct {
	IssueID string `db:"issue_id" json:"issue_id"`
	Title   string `db:"title" json:"title"`
	Votes   int    `db:"votes" json:"votes"`
}

type RoleCount struct {
	Role  string `db:"role" json:"role"`
	Count int    `db:"count" json:"count"`
}

type Analytics struct {
	Filter           string            `json:"filter"`
	Overview         AnalyticsOverview `json:"overview"`
	TimeSeries       []AnalyticsPoint  `json:"time_series"`
	TopIssues        []TopIssue        `json:"top_issues"`
	RoleDistribution []RoleCount       `json:"role_distribution"`
	Degraded         bool              `json:"degraded,omitempty"`
}

// EmptyAnalytics is the zeroed dashboard returned when aggregation fails.
func EmptyAnalytics(filter string) *Analytics {
	return &Analytics{
		Filter:           filter,
		TimeSeries:       []AnalyticsPoint{},
		TopIssues:        []TopIssue{},
		RoleDistribution: []RoleCount{},
		Degraded:         true,
	}
}
