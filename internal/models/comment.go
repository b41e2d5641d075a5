package models

import (
	"time"
)

// Target types for comments, media, likes and favorites
const (
	TargetForum   = "forum"
	TargetVideo   = "video"
	TargetComment = "comment"
	TargetReply   = "reply"
)

// Comment represents a comment under a forum or a video
type Comment struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetType string    `gorm:"type:varchar(16);not null;index:idx_comments_target;column:target_type"`
	TargetID   int64     `gorm:"not null;index:idx_comments_target;column:target_id"`
	AuthorID   int64     `gorm:"not null;index;column:author_id"`
	Content    string    `gorm:"type:text;not null;column:content"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at"`

	// Relationships
	Author *User `gorm:"foreignKey:AuthorID;references:ID"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}
