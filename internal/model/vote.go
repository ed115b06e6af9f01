package model

import "time"

const (
	PrivacyPublic         = "public"
	PrivacySuperAnonymous = "super_anonymous"
)

func IsValidPrivacy(privacy string) bool {
	return privacy == PrivacyPublic || privacy == PrivacySuperAnonymous
}

// VoteRecord is the single row per (user, issue). PositionID is nil for
// super-anonymous votes, which keep only a keyed seal of the credited position.
type VoteRecord struct {
	UserID     string    `db:"user_id" json:"user_id"`
	IssueID    string    `db:"issue_id" json:"issue_id"`
	PositionID *string   `db:"position_id" json:"position_id"`
	CreditSeal *string   `db:"credit_seal" json:"-"`
	Privacy    string    `db:"privacy" json:"privacy"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type VoteTracking struct {
	UserID     string    `db:"user_id" json:"user_id"`
	IssueID    string    `db:"issue_id" json:"issue_id"`
	PositionID *string   `db:"position_id" json:"position_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
