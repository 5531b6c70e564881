package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Gender is the self-declared gender of an anonymous session.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderOther       Gender = "OTHER"
	GenderUnspecified Gender = "UNSPECIFIED"
)

// ParseGender normalizes client input, falling back to GenderUnspecified.
func ParseGender(raw string) Gender {
	switch g := Gender(raw); g {
	case GenderMale, GenderFemale, GenderOther:
		return g
	default:
		return GenderUnspecified
	}
}

// DeviceType identifies the client platform that opened the session.
type DeviceType string

const (
	DeviceWeb     DeviceType = "WEB"
	DeviceIOS     DeviceType = "IOS"
	DeviceAndroid DeviceType = "ANDROID"
)

// Valid reports whether d is one of the known device types.
func (d DeviceType) Valid() bool {
	return d == DeviceWeb || d == DeviceIOS || d == DeviceAndroid
}

// UserSession represents one anonymous participant.
// It is created by the session gateway and never tied to an account.
type UserSession struct {
	ID                string         `gorm:"type:uuid;primaryKey" json:"id"`
	IPAddress         string         `gorm:"size:45;not null" json:"-"`
	Country           string         `gorm:"size:2" json:"country,omitempty"`
	DeviceType        DeviceType     `gorm:"size:16;not null" json:"device_type"`
	UserAgent         string         `gorm:"size:500" json:"-"`
	DeviceFingerprint string         `gorm:"size:256;index" json:"-"`
	Gender            Gender         `gorm:"size:16;default:UNSPECIFIED" json:"gender"`
	PreferredGender   *Gender        `gorm:"size:16" json:"preferred_gender,omitempty"`
	Interests         pq.StringArray `gorm:"type:text[]" json:"interests,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	LastSeenAt        time.Time      `json:"last_seen_at"`
	IsActive          bool           `gorm:"not null;default:true" json:"is_active"`
}

// BeforeCreate is a GORM hook that assigns a UUID and timestamps when missing.
func (s *UserSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = now
	}
	if s.Gender == "" {
		s.Gender = GenderUnspecified
	}
	return
}
