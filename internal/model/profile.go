package model

import "time"

const (
	ProfileStatusPending     = "pending"
	ProfileStatusActive      = "active"
	ProfileStatusDeactivated = "deactivated"
)

const (
	RoleBasic           = "basic"
	RolePremium         = "premium"
	RoleModerator       = "moderator"
	RolePoliticianAdmin = "politician_admin"
	RoleDirigoAdmin     = "dirigo_admin"
)

var profileStatuses = []string{ProfileStatusPending, ProfileStatusActive, ProfileStatusDeactivated}

var roles = []string{RoleBasic, RolePremium, RoleModerator, RolePoliticianAdmin, RoleDirigoAdmin}

type Profile struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Computed fields (not in database)
	AvatarURL string `db:"-" json:"avatar_url,omitempty"`
}

func IsValidProfileStatus(status string) bool {
	return contains(profileStatuses, status)
}

func IsValidRole(role string) bool {
	return contains(roles, role)
}

// Roles returns the closed role enumeration in display order.
func Roles() []string {
	return append([]string(nil), roles...)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// UserWithProfile is the merged credential + profile view used by admin endpoints.
type UserWithProfile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	Profile          *Profile   `json:"profile"`
}

func MergeUserProfile(user *User, profile *Profile) *UserWithProfile {
	return &UserWithProfile{
		ID:               user.ID,
		Email:            user.Email,
		EmailConfirmedAt: user.EmailVerifiedAt,
		CreatedAt:        user.CreatedAt,
		Profile:          profile,
	}
}
