package model

import "time"

const (
	ScopeLocal         = "local"
	ScopeState         = "state"
	ScopeInternational = "international"
)

func IsValidScope(scope string) bool {
	return scope == ScopeLocal || scope == ScopeState || scope == ScopeInternational
}

type Issue struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Category  string    `db:"category" json:"category"`
	Scope     string    `db:"scope" json:"scope"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Computed fields (not in database)
	CategoryLabel string `db:"-" json:"category_label"`
}

type Position struct {
	ID        string    `db:"id" json:"id"`
	IssueID   string    `db:"issue_id" json:"issue_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Votes     int       `db:"votes" json:"votes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Computed fields (not in database)
	ContentHTML string `db:"-" json:"content_html"`
	Summary     string `db:"-" json:"summary"`
}

// IssueFilter narrows issue listings. Zero values mean "any".
type IssueFilter struct {
	Scope    string
	Category string
	Page     int
	PageSize int
}
