package models

import (
	"time"
)

// Media represents one attachment row. An item can own several; the public
// URL is served to clients while URLForDeletion addresses the blob store
// object for later purges.
type Media struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	TargetType     string    `gorm:"type:varchar(16);not null;index:idx_media_target;column:target_type"`
	TargetID       int64     `gorm:"not null;index:idx_media_target;column:target_id"`
	URL            string    `gorm:"type:varchar(1024);not null;column:url"`
	URLForDeletion string    `gorm:"type:varchar(1024);column:url_for_deletion"`
	Position       int       `gorm:"not null;default:0;column:position"`
	CreatedAt      time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Media
func (Media) TableName() string {
	return "media"
}
