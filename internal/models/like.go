package models

import (
	"time"
)

// Like represents a viewer's like on a piece of content
type Like struct {
	UserID     int64     `gorm:"primaryKey;column:user_id"`
	TargetType string    `gorm:"type:varchar(16);primaryKey;column:target_type"`
	TargetID   int64     `gorm:"primaryKey;column:target_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Like
func (Like) TableName() string {
	return "likes"
}

// Favorite represents a viewer's save/bookmark on a piece of content
type Favorite struct {
	UserID     int64     `gorm:"primaryKey;column:user_id"`
	TargetType string    `gorm:"type:varchar(16);primaryKey;column:target_type"`
	TargetID   int64     `gorm:"primaryKey;column:target_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Favorite
func (Favorite) TableName() string {
	return "favorites"
}
