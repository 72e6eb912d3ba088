package models

import "time"

// Question is asked by one profile of another, optionally anonymously.
type Question struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Content     string    `gorm:"size:1200;not null" json:"content"`
	Anonymous   bool      `gorm:"not null;default:false" json:"anonymous"`
	FromID      string    `gorm:"type:uuid;not null;index" json:"from,omitempty"`
	RecipientID string    `gorm:"type:uuid;not null;index" json:"recipient"`
	CreatedAt   time.Time `json:"created_at"`
}
