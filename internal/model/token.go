package model

import "time"

// TokenPurpose scopes a token to the flow that issued it.
type TokenPurpose string

const TokenPurposeEmailVerify TokenPurpose = "email_verify"

// Token is a single-use secret mailed to a user inside a link.
type Token struct {
	ID        string       `db:"id"`
	UserID    string       `db:"user_id"`
	Purpose   TokenPurpose `db:"type"`
	Value     string       `db:"token"`
	ExpiresAt time.Time    `db:"expires_at"`
	UsedAt    *time.Time   `db:"used_at"`
	CreatedAt time.Time    `db:"created_at"`
}
