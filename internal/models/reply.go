package models

import (
	"time"
)

// Reply represents a reply under a comment
type Reply struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CommentID int64     `gorm:"not null;index;column:comment_id"`
	AuthorID  int64     `gorm:"not null;index;column:author_id"`
	Content   string    `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`

	// Relationships
	Comment *Comment `gorm:"foreignKey:CommentID;references:ID"`
	Author  *User    `gorm:"foreignKey:AuthorID;references:ID"`
}

// TableName specifies the table name for Reply
func (Reply) TableName() string {
	return "replies"
}
