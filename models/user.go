// models/user.go
package models

import (
	"time"
)

const DefaultProfilePicture = "https://picsum.photos/id/11/500/500.jpg"

type User struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	Name           string  `json:"name" gorm:"not null"`
	ProfilePicture string  `json:"profile_picture" gorm:"not null"`
	Email          *string `json:"email,omitempty" gorm:"uniqueIndex"`

	CreatedAt time.Time `json:"created_at"`
}

// UserSession maps an opaque bearer token to a user. Tokens are minted at
// registration and never rotated; the reaper prunes stale rows.
type UserSession struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UserID       uint   `json:"user_id" gorm:"not null"`
	User         User   `json:"user" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	SessionToken string `json:"-" gorm:"uniqueIndex;not null"`

	CreatedAt time.Time `json:"created_at"`
}
