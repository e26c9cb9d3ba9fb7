package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account of the REST API. Password is nil for accounts
// provisioned through an external identity provider.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  *string   `gorm:"size:255" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	GoogleID  *string   `gorm:"uniqueIndex;size:255" json:"google_id,omitempty"`
	Avatar    string    `gorm:"size:500" json:"avatar,omitempty"`
	IsBlocked bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the user if none was assigned.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}
