package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is a named, taggable actor. Profiles post, like, ask questions and
// follow each other; users manage them.
type Profile struct {
	ID      string    `gorm:"type:uuid;primaryKey" json:"id"`
	Tag     string    `gorm:"uniqueIndex;not null;size:32" json:"tag"`
	Name    string    `gorm:"not null;size:64" json:"name"`
	Created time.Time `gorm:"autoCreateTime" json:"created"`

	// ManagerIDs is always loaded alongside the profile.
	ManagerIDs []uint `gorm:"-" json:"managerIds"`

	// Relations below are only populated when expanded.
	Posts     []Post    `gorm:"-" json:"posts,omitempty"`
	Managers  []User    `gorm:"-" json:"managers,omitempty"`
	Following []Profile `gorm:"-" json:"following,omitempty"`
	Followers []Profile `gorm:"-" json:"followers,omitempty"`
	Likes     []Post    `gorm:"-" json:"likes,omitempty"`

	// Relationship is set when the request names a viewing profile.
	Relationship *Relationship `gorm:"-" json:"relationship,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProfileManager links a user to a profile it may act as.
type ProfileManager struct {
	ProfileID string    `gorm:"type:uuid;primaryKey" json:"profile_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ProfileManager) TableName() string {
	return "profile_managers"
}

// Follow is a directed edge: FollowerID follows FollowedID.
// Followers of X are rows with FollowedID = X; profiles X follows are rows
// with FollowerID = X. Both directions are indexed.
type Follow struct {
	FollowerID string    `gorm:"type:uuid;primaryKey" json:"follower_id"`
	FollowedID string    `gorm:"type:uuid;primaryKey;index:idx_follows_followed" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// Relationship describes how a profile relates to a viewing profile.
type Relationship struct {
	// Following is true when the viewer follows the profile.
	Following bool `json:"following"`
	// FollowedBy is true when the profile follows the viewer.
	FollowedBy bool `json:"followedBy"`
}
