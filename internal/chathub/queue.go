package chathub

import (
	"time"

	"github.com/samber/lo"

	"omechat/backend/internal/models"
)

// Attributes are the matchmaking inputs the gateway resolves for a session.
type Attributes struct {
	Gender models.Gender
	// PreferredGender restricts partners to one gender; nil accepts anyone.
	PreferredGender *models.Gender
	Interests       []string
}

// accepts reports whether a session with these attributes would accept a
// partner of the given gender.
func (a Attributes) accepts(partner models.Gender) bool {
	return a.PreferredGender == nil || *a.PreferredGender == partner
}

// QueuedEntry is one session waiting for a partner.
type QueuedEntry struct {
	SessionID  string
	Attrs      Attributes
	EnqueuedAt time.Time
	Channel    Client
}

// CompatibilityFunc decides whether an incoming session may be paired with a
// queued one. It is evaluated in queue order and must not block.
type CompatibilityFunc func(queued *QueuedEntry, incoming Attributes) bool

// MatchAnyone pairs every two sessions.
func MatchAnyone(*QueuedEntry, Attributes) bool { return true }

// MatchGenderPreference pairs two sessions only when each one's preference
// accepts the other's declared gender.
func MatchGenderPreference(queued *QueuedEntry, incoming Attributes) bool {
	return queued.Attrs.accepts(incoming.Gender) && incoming.accepts(queued.Attrs.Gender)
}

// Queue is the FIFO waiting list. Order is insertion order; index gives
// constant-time membership checks.
type Queue struct {
	entries []*QueuedEntry
	index   map[string]*QueuedEntry
}

func newQueue() *Queue {
	return &Queue{index: make(map[string]*QueuedEntry)}
}

func (q *Queue) Len() int { return len(q.entries) }

func (q *Queue) Contains(sessionID string) bool {
	_, ok := q.index[sessionID]
	return ok
}

// Push appends e and returns its 1-based position.
func (q *Queue) Push(e *QueuedEntry) int {
	q.entries = append(q.entries, e)
	q.index[e.SessionID] = e
	return len(q.entries)
}

func (q *Queue) Remove(sessionID string) bool {
	if !q.Contains(sessionID) {
		return false
	}
	_, i, _ := lo.FindIndexOf(q.entries, func(e *QueuedEntry) bool { return e.SessionID == sessionID })
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	delete(q.index, sessionID)
	return true
}

// Position returns the 1-based rank of sessionID.
func (q *Queue) Position(sessionID string) (int, bool) {
	if !q.Contains(sessionID) {
		return 0, false
	}
	_, i, _ := lo.FindIndexOf(q.entries, func(e *QueuedEntry) bool { return e.SessionID == sessionID })
	return i + 1, true
}

// First returns the oldest entry satisfying pred.
func (q *Queue) First(pred func(*QueuedEntry) bool) (*QueuedEntry, bool) {
	return lo.Find(q.entries, pred)
}

// SessionIDs lists the queued sessions in queue order.
func (q *Queue) SessionIDs() []string {
	return lo.Map(q.entries, func(e *QueuedEntry, _ int) string { return e.SessionID })
}
