package chathub

import "time"

// ActiveConnection is a live pairing of two sessions.
type ActiveConnection struct {
	ConnectionID string
	SessionA     string // the initiator
	SessionB     string
	StartedAt    time.Time

	// closed by Match.Announced; nil for connections built outside JoinQueue
	announced chan struct{}
}

// waitAnnounced blocks until the MATCH_FOUND frames of c were sent, or
// timeout passes. It reports whether the announcement happened.
func (c *ActiveConnection) waitAnnounced(timeout time.Duration) bool {
	if c.announced == nil {
		return true
	}
	select {
	case <-c.announced:
		return true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.announced:
		return true
	case <-timer.C:
		return false
	}
}

// PartnerOf returns the other participant, or "" if sessionID is not part of c.
func (c *ActiveConnection) PartnerOf(sessionID string) string {
	switch sessionID {
	case c.SessionA:
		return c.SessionB
	case c.SessionB:
		return c.SessionA
	}
	return ""
}

// ConnectionTable indexes live connections by id and by either participant.
// While a connection exists bySession holds exactly two entries for it.
type ConnectionTable struct {
	byID      map[string]*ActiveConnection
	bySession map[string]string
}

func newConnectionTable() *ConnectionTable {
	return &ConnectionTable{
		byID:      make(map[string]*ActiveConnection),
		bySession: make(map[string]string),
	}
}

func (t *ConnectionTable) Add(c *ActiveConnection) {
	t.byID[c.ConnectionID] = c
	t.bySession[c.SessionA] = c.ConnectionID
	t.bySession[c.SessionB] = c.ConnectionID
}

func (t *ConnectionTable) Get(connectionID string) (*ActiveConnection, bool) {
	c, ok := t.byID[connectionID]
	return c, ok
}

func (t *ConnectionTable) BySession(sessionID string) (*ActiveConnection, bool) {
	id, ok := t.bySession[sessionID]
	if !ok {
		return nil, false
	}
	return t.Get(id)
}

func (t *ConnectionTable) Contains(sessionID string) bool {
	_, ok := t.bySession[sessionID]
	return ok
}

// Remove drops the connection and both reverse-index entries.
func (t *ConnectionTable) Remove(connectionID string) (*ActiveConnection, bool) {
	c, ok := t.byID[connectionID]
	if !ok {
		return nil, false
	}
	delete(t.byID, connectionID)
	delete(t.bySession, c.SessionA)
	delete(t.bySession, c.SessionB)
	return c, true
}

func (t *ConnectionTable) Len() int { return len(t.byID) }

// Participants counts sessions across all live connections.
func (t *ConnectionTable) Participants() int { return len(t.bySession) }
