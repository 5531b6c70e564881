package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ban blocks a session, an IP address or a device fingerprint.
// A nil ExpiresAt means the ban is permanent.
type Ban struct {
	ID                string     `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID         *string    `gorm:"type:uuid;index" json:"session_id,omitempty"`
	IPAddress         string     `gorm:"size:45;index" json:"ip_address,omitempty"`
	DeviceFingerprint string     `gorm:"size:256;index" json:"device_fingerprint,omitempty"`
	Reason            string     `gorm:"type:text;not null" json:"reason"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	IsActive          bool       `gorm:"not null;default:true;index" json:"is_active"`
}

func (b *Ban) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return
}

// IsEffective reports whether the ban is active and not expired at now.
func (b *Ban) IsEffective(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	return b.ExpiresAt == nil || now.Before(*b.ExpiresAt)
}
