package models

import (
	"time"
)

// Post is content owned by exactly one authoring profile.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorID   string    `gorm:"type:uuid;not null;index:idx_posts_author_created,priority:1" json:"author_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	QuestionID *uint     `gorm:"index" json:"question_id,omitempty"`
	CreatedAt  time.Time `gorm:"index:idx_posts_author_created,priority:2,sort:desc" json:"created_at"`

	// LikeIDs holds the ids of profiles that liked the post.
	LikeIDs []string `gorm:"-" json:"likeIds"`

	// Populated only on expand.
	Author   *Profile  `gorm:"-" json:"author,omitempty"`
	Likes    []Profile `gorm:"-" json:"likes,omitempty"`
	Question *Question `gorm:"-" json:"question,omitempty"`
}

// PostLike records that a profile liked a post.
type PostLike struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	ProfileID string    `gorm:"type:uuid;primaryKey;index" json:"profile_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (PostLike) TableName() string {
	return "post_likes"
}
