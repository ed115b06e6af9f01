package model

import "time"

type IssueReport struct {
	ID         string    `db:"id" json:"id"`
	IssueID    string    `db:"issue_id" json:"issue_id"`
	ReporterID string    `db:"reporter_id" json:"reporter_id"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type PositionReport struct {
	ID         string    `db:"id" json:"id"`
	PositionID string    `db:"position_id" json:"position_id"`
	ReporterID string    `db:"reporter_id" json:"reporter_id"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SiteIssue is free-form feedback sent through the contact form.
type SiteIssue struct {
	ID         string    `db:"id" json:"id"`
	ReporterID *string   `db:"reporter_id" json:"reporter_id"`
	Email      string    `db:"email" json:"email"`
	Subject    string    `db:"subject" json:"subject"`
	Message    string    `db:"message" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type SystemError struct {
	ID        string    `db:"id" json:"id"`
	Level     string    `db:"level" json:"level"`
	Message   string    `db:"message" json:"message"`
	Context   string    `db:"context" json:"context"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
