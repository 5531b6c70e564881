package chathub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"omechat/backend/internal/metrics"
	"omechat/backend/internal/models"
)

// JoinStatus is the outcome of Matcher.JoinQueue.
type JoinStatus int

const (
	JoinEnqueued JoinStatus = iota
	JoinMatched
	// JoinAlreadyActive: the session is already queued or matched; nothing changed.
	JoinAlreadyActive
	// JoinNotRegistered: the session has no channel; nothing changed.
	JoinNotRegistered
)

// Match describes a freshly created pairing from the caller's point of view.
// The caller is always the initiator.
type Match struct {
	ConnectionID   string
	PartnerID      string
	PartnerChannel Client
	StartedAt      time.Time

	announced chan struct{}
}

// Announced must be called once both MATCH_FOUND frames have been handed to
// the channels. Until then a MATCH_ENDED for this connection is held back,
// so no client learns that a match ended before it learns it started.
func (m *Match) Announced() {
	close(m.announced)
}

type JoinResult struct {
	Status   JoinStatus
	Position int // 1-based, set when Status == JoinEnqueued
	Match    *Match
	Stats    models.OnlineStats
}

// Ended describes a connection that was just torn down.
type Ended struct {
	Connection     ActiveConnection
	PartnerID      string
	PartnerChannel Client // nil if the partner has no channel any more
	Reason         models.EndedReason
	EndedAt        time.Time
}

type CleanupResult struct {
	LeftQueue    bool
	Ended        *Ended
	Unregistered bool
}

// Route is where a frame from a matched session must go.
type Route struct {
	ConnectionID string
	PartnerID    string
	Channel      Client
}

// Matcher owns the registry, the waiting queue and the connection table.
// Один м'ютекс на все: every read-modify-write of the three structures
// happens inside one critical section, and nothing in it does I/O.
type Matcher struct {
	mu         sync.Mutex
	registry   *Registry
	queue      *Queue
	conns      *ConnectionTable
	compatible CompatibilityFunc
	now        func() time.Time
	newID      func() string
	metrics    *metrics.Engine
}

type MatcherOption func(*Matcher)

func WithCompatibility(f CompatibilityFunc) MatcherOption {
	return func(m *Matcher) {
		if f != nil {
			m.compatible = f
		}
	}
}

func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) { m.now = now }
}

func WithIDGenerator(newID func() string) MatcherOption {
	return func(m *Matcher) { m.newID = newID }
}

// WithMetrics reports gauges and match counters to e instead of
// metrics.Default.
func WithMetrics(e *metrics.Engine) MatcherOption {
	return func(m *Matcher) {
		if e != nil {
			m.metrics = e
		}
	}
}

func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		registry:   newRegistry(),
		queue:      newQueue(),
		conns:      newConnectionTable(),
		compatible: MatchAnyone,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		metrics:    metrics.Default,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) Register(sessionID string, c Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registry.Register(sessionID, c); err != nil {
		return err
	}
	m.observe()
	return nil
}

func (m *Matcher) Unregister(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.registry.Unregister(sessionID)
	m.observe()
	return ok
}

func (m *Matcher) Lookup(sessionID string) (Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Lookup(sessionID)
}

// Snapshot copies the registry.
func (m *Matcher) Snapshot() map[string]Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Snapshot()
}

// JoinQueue pairs the session with the oldest compatible waiting session, or
// appends it to the queue. ch may be nil, in which case the registered
// channel is used.
func (m *Matcher) JoinQueue(sessionID string, attrs Attributes, ch Client) JoinResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Lookup(sessionID)
	if !ok {
		return JoinResult{Status: JoinNotRegistered, Stats: m.stats()}
	}
	if m.queue.Contains(sessionID) || m.conns.Contains(sessionID) {
		return JoinResult{Status: JoinAlreadyActive, Stats: m.stats()}
	}
	if ch == nil {
		ch = registered
	}

	partner, found := m.queue.First(func(e *QueuedEntry) bool {
		return e.SessionID != sessionID && m.compatible(e, attrs)
	})
	if !found {
		pos := m.queue.Push(&QueuedEntry{
			SessionID:  sessionID,
			Attrs:      attrs,
			EnqueuedAt: m.now(),
			Channel:    ch,
		})
		m.observe()
		return JoinResult{Status: JoinEnqueued, Position: pos, Stats: m.stats()}
	}

	m.queue.Remove(partner.SessionID)
	conn := &ActiveConnection{
		ConnectionID: m.newID(),
		SessionA:     sessionID,
		SessionB:     partner.SessionID,
		StartedAt:    m.now(),
		announced:    make(chan struct{}),
	}
	m.conns.Add(conn)

	partnerCh := partner.Channel
	if current, ok := m.registry.Lookup(partner.SessionID); ok {
		partnerCh = current
	}

	m.metrics.MatchCreated()
	m.observe()
	return JoinResult{
		Status: JoinMatched,
		Match: &Match{
			ConnectionID:   conn.ConnectionID,
			PartnerID:      partner.SessionID,
			PartnerChannel: partnerCh,
			StartedAt:      conn.StartedAt,
			announced:      conn.announced,
		},
		Stats: m.stats(),
	}
}

func (m *Matcher) LeaveQueue(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.queue.Remove(sessionID)
	if ok {
		m.observe()
	}
	return ok
}

// EndConnection tears down the session's connection. The second return is
// false when the session was not matched.
func (m *Matcher) EndConnection(sessionID string, reason models.EndedReason) (*Ended, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ended := m.endLocked(sessionID, reason)
	return ended, ended != nil
}

func (m *Matcher) endLocked(sessionID string, reason models.EndedReason) *Ended {
	conn, ok := m.conns.BySession(sessionID)
	if !ok {
		return nil
	}
	m.conns.Remove(conn.ConnectionID)

	partnerID := conn.PartnerOf(sessionID)
	partnerCh, _ := m.registry.Lookup(partnerID)

	m.metrics.MatchEnded(reason)
	m.observe()
	return &Ended{
		Connection:     *conn,
		PartnerID:      partnerID,
		PartnerChannel: partnerCh,
		Reason:         reason,
		EndedAt:        m.now(),
	}
}

// Cleanup removes every trace of the session: queue entry, connection and
// channel. It is idempotent.
func (m *Matcher) Cleanup(sessionID string, reason models.EndedReason) CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanupLocked(sessionID, reason)
}

// CleanupChannel is Cleanup guarded by channel ownership: if the session is
// registered to a different channel, the call belongs to a stale transport
// and nothing is touched.
func (m *Matcher) CleanupChannel(c Client, reason models.EndedReason) (CleanupResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessionID := c.GetSessionID()
	if current, ok := m.registry.Lookup(sessionID); ok && current != c {
		return CleanupResult{}, false
	}
	return m.cleanupLocked(sessionID, reason), true
}

func (m *Matcher) cleanupLocked(sessionID string, reason models.EndedReason) CleanupResult {
	res := CleanupResult{}
	res.LeftQueue = m.queue.Remove(sessionID)
	res.Ended = m.endLocked(sessionID, reason)
	res.Unregistered = m.registry.Unregister(sessionID)
	m.observe()
	return res
}

func (m *Matcher) QueuePosition(sessionID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Position(sessionID)
}

// PartnerOf resolves the partner of a matched session.
func (m *Matcher) PartnerOf(sessionID string) (Route, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns.BySession(sessionID)
	if !ok {
		return Route{}, false
	}
	partnerID := conn.PartnerOf(sessionID)
	ch, _ := m.registry.Lookup(partnerID)
	return Route{ConnectionID: conn.ConnectionID, PartnerID: partnerID, Channel: ch}, true
}

// Connection returns a copy of the session's live connection.
func (m *Matcher) Connection(sessionID string) (ActiveConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns.BySession(sessionID)
	if !ok {
		return ActiveConnection{}, false
	}
	return *conn, true
}

func (m *Matcher) Stats() models.OnlineStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats()
}

// BroadcastTargets returns the channels of registered sessions that are not
// in a connection, except exclude, together with the stats they should see.
func (m *Matcher) BroadcastTargets(exclude string) ([]Client, models.OnlineStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	targets := make([]Client, 0, m.registry.Len())
	for id, c := range m.registry.Snapshot() {
		if id == exclude || m.conns.Contains(id) {
			continue
		}
		targets = append(targets, c)
	}
	return targets, m.stats()
}

// QueuedSessions lists waiting sessions in queue order.
func (m *Matcher) QueuedSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.SessionIDs()
}

// stats: online_count is sessions queued or matched; idle registered
// channels are counted only in Registered.
func (m *Matcher) stats() models.OnlineStats {
	return models.OnlineStats{
		OnlineCount:       m.queue.Len() + m.conns.Participants(),
		QueueSize:         m.queue.Len(),
		ActiveConnections: m.conns.Len(),
		Registered:        m.registry.Len(),
	}
}

func (m *Matcher) observe() {
	m.metrics.Observe(m.stats())
}
