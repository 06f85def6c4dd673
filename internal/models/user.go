package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the slice of the profile row the messaging core reads and writes.
// Profile CRUD lives elsewhere; this core only flips IsOnline on connect and
// disconnect.
type User struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:64" json:"username"`
	DisplayName  string     `gorm:"size:128" json:"displayName"`
	AvatarURL    string     `gorm:"type:text" json:"avatarUrl,omitempty"`
	IsOnline     bool       `gorm:"not null;default:false" json:"isOnline"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the user if ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
