package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportReason string

const (
	ReasonNudity     ReportReason = "NUDITY"
	ReasonHarassment ReportReason = "HARASSMENT"
	ReasonSpam       ReportReason = "SPAM"
	ReasonBot        ReportReason = "BOT"
	ReasonOther      ReportReason = "OTHER"
)

// Valid reports whether r is a known report reason.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonNudity, ReasonHarassment, ReasonSpam, ReasonBot, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportNew         ReportStatus = "NEW"
	ReportUnderReview ReportStatus = "UNDER_REVIEW"
	ReportResolved    ReportStatus = "RESOLVED"
	ReportRejected    ReportStatus = "REJECTED"
)

// Report is a complaint filed by one session against another.
type Report struct {
	ID                string       `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID      *string      `gorm:"type:uuid;index" json:"connection_id,omitempty"`
	ReporterSessionID string       `gorm:"type:uuid;not null;index" json:"reporter_session_id"`
	ReportedSessionID *string      `gorm:"type:uuid;index" json:"reported_session_id,omitempty"`
	Reason            ReportReason `gorm:"size:16;not null" json:"reason"`
	Description       string       `gorm:"type:text" json:"description,omitempty"`
	Status            ReportStatus `gorm:"size:16;not null;index;default:NEW" json:"status"`
	CreatedAt         time.Time    `gorm:"not null;index" json:"created_at"`
	ProcessedAt       *time.Time   `json:"processed_at,omitempty"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ReportNew
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return
}
