package models

import (
	"time"
)

// Forum represents a top-level forum post
type Forum struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	AuthorID    int64     `gorm:"not null;index;column:author_id"`
	Title       string    `gorm:"type:varchar(255);not null;column:title"`
	Description string    `gorm:"type:text;column:description"`
	ViewCount   int64     `gorm:"not null;default:0;column:view_count"`
	CreatedAt   time.Time `gorm:"not null;index;column:created_at"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at"`

	// Relationships
	Author *User `gorm:"foreignKey:AuthorID;references:ID"`
}

// TableName specifies the table name for Forum
func (Forum) TableName() string {
	return "forums"
}
