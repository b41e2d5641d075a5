package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Username  string    `gorm:"type:varchar(32);uniqueIndex;not null;column:username"`
	Nickname  string    `gorm:"type:varchar(64);not null;column:nickname"`
	AvatarURL string    `gorm:"type:varchar(1024);column:avatar_url"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
