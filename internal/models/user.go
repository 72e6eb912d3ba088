// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an authenticated identity. Users never post directly; they act
// through the profiles they manage.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:30" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null;size:254" json:"-"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ProfileIDs lists the profiles this user manages. Loaded from profile_managers.
	ProfileIDs []string `gorm:"-" json:"profile_ids"`
	// Profiles is populated only when the "profiles" relation is expanded.
	Profiles []Profile `gorm:"-" json:"profiles,omitempty"`
}

// ManagesProfile reports whether profileID is among the user's managed profiles.
func (u *User) ManagesProfile(profileID string) bool {
	if u == nil {
		return false
	}
	for _, id := range u.ProfileIDs {
		if id == profileID {
			return true
		}
	}
	return false
}
