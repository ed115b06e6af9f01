package model

import "time"

// Avatar is the stored profile picture of a user. Each user has at most one.
type Avatar struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	ObjectKey    string    `db:"object_key"`
	OriginalName string    `db:"original_name"`
	MimeType     string    `db:"mime_type"`
	Size         int64     `db:"size"`
	CreatedAt    time.Time `db:"created_at"`
}
