package models

import "time"

// EndedReason explains why a matched connection was torn down.
type EndedReason string

const (
	EndedNormal       EndedReason = "NORMAL"
	EndedNexted       EndedReason = "NEXTED"
	EndedDisconnected EndedReason = "DISCONNECTED"
	EndedBanned       EndedReason = "BANNED"
	EndedError        EndedReason = "ERROR"
)

// Connection is the persisted record of one match between two sessions.
// The live pairing is owned by the matchmaking engine; this row is written
// after the fact and is never read back by it.
type Connection struct {
	ID          string       `gorm:"type:uuid;primaryKey"`
	SessionAID  string       `gorm:"type:uuid;not null;index"`
	SessionBID  string       `gorm:"type:uuid;not null;index"`
	StartedAt   time.Time    `gorm:"not null;index"`
	EndedAt     *time.Time
	EndedReason *EndedReason `gorm:"size:16"`
	Reported    bool         `gorm:"not null;default:false"`
}

// PartnerOf returns the other participant of the connection, or "" when
// sessionID did not take part in it.
func (c *Connection) PartnerOf(sessionID string) string {
	switch sessionID {
	case c.SessionAID:
		return c.SessionBID
	case c.SessionBID:
		return c.SessionAID
	default:
		return ""
	}
}

// Duration is the lifetime of an ended connection; zero while it is open.
func (c *Connection) Duration() time.Duration {
	if c.EndedAt == nil {
		return 0
	}
	return c.EndedAt.Sub(c.StartedAt)
}
