package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is a server-side session record. Tokens embed the session id, so
// deleting the row revokes the credential immediately.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uint      `gorm:"index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// BeforeCreate assigns a random session id.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
