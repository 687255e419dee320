package models

import (
	"time"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleTeamMember UserRole = "team_member"
)

type User struct {
	ID                uint64     `gorm:"primarykey" json:"id"`
	Name              string     `gorm:"not null" json:"name"`
	Email             string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"type:varchar(255);not null" json:"-"`
	Role              UserRole   `gorm:"type:varchar(20);not null;default:'team_member'" json:"role"`
	Department        string     `gorm:"type:varchar(100)" json:"department"`
	Position          string     `gorm:"type:varchar(100)" json:"position"`
	Photo             string     `json:"photo"`
	Active            bool       `gorm:"not null;default:true" json:"active"`
	PasswordChangedAt *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// TokenIssuedBeforePasswordChange reports whether a token issued at the given
// time predates the user's last password change and must be rejected.
func (u *User) TokenIssuedBeforePasswordChange(issuedAt time.Time) bool {
	return u.PasswordChangedAt != nil && issuedAt.Before(*u.PasswordChangedAt)
}
