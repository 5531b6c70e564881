package chathub

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"omechat/backend/internal/logging"
	"omechat/backend/internal/metrics"
	"omechat/backend/internal/models"
)

// announceTimeout bounds how long a MATCH_ENDED waits for its MATCH_FOUND.
// Sends are non-blocking, so the wait is normally a few microseconds.
const announceTimeout = 2 * time.Second

// ManagerService dispatches protocol frames from registered channels onto
// the Matcher and the Relay, and fans the resulting notifications out.
// All notifications are sent after the Matcher has released its lock.
type ManagerService struct {
	Matcher *Matcher
	Relay   *Relay

	recorder *asyncRecorder
}

type ManagerOption func(*ManagerService)

// WithRecorder persists connection records through rec on pool.
func WithRecorder(rec Recorder, pool *ants.Pool) ManagerOption {
	return func(m *ManagerService) {
		if rec != nil && pool != nil {
			m.recorder = &asyncRecorder{rec: rec, pool: pool}
		}
	}
}

func NewManagerService(matcher *Matcher, opts ...ManagerOption) *ManagerService {
	m := &ManagerService{
		Matcher: matcher,
		Relay:   NewRelay(matcher),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect registers the client's channel. A session may own one channel at
// a time; a second one gets ErrAlreadyRegistered.
func (m *ManagerService) Connect(c Client) error {
	if err := m.Matcher.Register(c.GetSessionID(), c); err != nil {
		return err
	}
	logging.L().Info("client registered", zap.String("session_id", c.GetSessionID()))
	return nil
}

// Disconnect is called once when the client's transport goes away.
func (m *ManagerService) Disconnect(c Client) {
	m.teardown(c, models.EndedDisconnected, models.EndedDisconnected)
}

// Kick removes a session from the engine: it is told it was banned, its
// partner sees the match end with ERROR and its channel is closed.
// It reports whether the session had a channel.
func (m *ManagerService) Kick(sessionID, reason string) bool {
	c, ok := m.Matcher.Lookup(sessionID)
	if !ok {
		return false
	}
	if err := c.Send(bannedFrame(reason)); err != nil {
		logging.L().Debug("banned notice not delivered", zap.String("session_id", sessionID), zap.Error(err))
	}
	m.teardown(c, models.EndedError, models.EndedBanned)
	c.Close()
	logging.L().Info("session kicked", zap.String("session_id", sessionID), zap.String("reason", reason))
	return true
}

// teardown runs Cleanup for c. partnerReason is what the partner is told,
// recordReason is what gets persisted.
func (m *ManagerService) teardown(c Client, partnerReason, recordReason models.EndedReason) {
	sessionID := c.GetSessionID()
	res, owned := m.Matcher.CleanupChannel(c, partnerReason)
	if !owned {
		logging.L().Debug("ignoring teardown of superseded channel", zap.String("session_id", sessionID))
		return
	}
	if res.Ended != nil {
		m.notifyEnded(res.Ended)
		m.recorder.matchEnded(res.Ended, recordReason)
	}
	if res.LeftQueue || res.Ended != nil {
		m.broadcastOnlineCount(sessionID)
	}
	if res.Unregistered {
		logging.L().Info("client unregistered", zap.String("session_id", sessionID))
	}
}

// HandleMessage decodes and dispatches one frame from c. Malformed or
// unknown frames are dropped; nothing is sent back.
func (m *ManagerService) HandleMessage(c Client, raw []byte) {
	sessionID := c.GetSessionID()
	msg, err := decodeInbound(raw)
	if err != nil {
		metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropMalformed).Inc()
		logging.L().Debug("dropping malformed frame", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	switch msg.Type {
	case models.TypeJoinQueue:
		m.joinQueue(c)
	case models.TypeLeaveQueue:
		if m.Matcher.LeaveQueue(sessionID) {
			m.broadcastOnlineCount(sessionID)
		}
	case models.TypeNext:
		m.next(c)
	case models.TypeOffer, models.TypeAnswer, models.TypeIceCandidate:
		m.Relay.RelayToPartner(sessionID, msg.ConnectionID, msg.Type, raw)
	case models.TypeChatMessage:
		m.Relay.RelayToPartner(sessionID, msg.ConnectionID, msg.Type, chatFrame(msg.Text))
	default:
		metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropUnknownType).Inc()
		logging.L().Debug("dropping frame",
			zap.String("session_id", sessionID),
			zap.Error(errors.Wrapf(ErrUnknownMessage, "type %q", msg.Type)))
	}
}

func (m *ManagerService) joinQueue(c Client) {
	sessionID := c.GetSessionID()
	res := m.Matcher.JoinQueue(sessionID, c.GetAttributes(), c)

	switch res.Status {
	case JoinMatched:
		match := res.Match
		send(c, matchFoundFrame(match.ConnectionID, true))
		if match.PartnerChannel != nil {
			send(match.PartnerChannel, matchFoundFrame(match.ConnectionID, false))
		}
		match.Announced()
		m.recorder.matchStarted(ActiveConnection{
			ConnectionID: match.ConnectionID,
			SessionA:     sessionID,
			SessionB:     match.PartnerID,
			StartedAt:    match.StartedAt,
		})
		logging.L().Info("match found",
			zap.String("connection_id", match.ConnectionID),
			zap.String("initiator", sessionID),
			zap.String("partner", match.PartnerID))
		m.broadcastOnlineCount(sessionID)
	case JoinEnqueued:
		send(c, queuePositionFrame(res.Position, res.Stats.OnlineCount))
		m.broadcastOnlineCount(sessionID)
	case JoinAlreadyActive:
		logging.L().Debug("join ignored, session already queued or matched", zap.String("session_id", sessionID))
	case JoinNotRegistered:
		logging.L().Warn("join from unregistered session", zap.String("session_id", sessionID))
	}
}

// next ends the current connection (if any) and always acknowledges the
// caller with MATCH_ENDED{NEXTED}. Re-queueing is the client's job.
func (m *ManagerService) next(c Client) {
	sessionID := c.GetSessionID()
	if ended, ok := m.Matcher.EndConnection(sessionID, models.EndedNexted); ok {
		m.notifyEnded(ended)
		m.recorder.matchEnded(ended, models.EndedNexted)
		m.broadcastOnlineCount(sessionID)
	}
	send(c, matchEndedFrame(models.EndedNexted))
}

// notifyEnded tells the partner the match is over. A teardown racing the
// match itself (the waiting side disconnects while the initiator is still
// being told about the match) waits for MATCH_FOUND to go out first, so each
// client always sees MATCH_FOUND before the MATCH_ENDED of a connection.
func (m *ManagerService) notifyEnded(e *Ended) {
	if !e.Connection.waitAnnounced(announceTimeout) {
		logging.L().Warn("match was never announced, ending it anyway",
			zap.String("connection_id", e.Connection.ConnectionID))
	}
	if e.PartnerChannel == nil {
		return
	}
	send(e.PartnerChannel, matchEndedFrame(e.Reason))
}

// broadcastOnlineCount tells every idle or queued channel, except the one
// that caused the change, the new online count.
func (m *ManagerService) broadcastOnlineCount(exclude string) {
	targets, stats := m.Matcher.BroadcastTargets(exclude)
	frame := onlineCountFrame(stats.OnlineCount)
	for _, c := range targets {
		send(c, frame)
	}
}

func (m *ManagerService) Stats() models.OnlineStats {
	return m.Matcher.Stats()
}

// send delivers a server-originated frame, best effort.
func send(c Client, frame []byte) {
	if frame == nil {
		return
	}
	if err := c.Send(frame); err != nil {
		metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropSendFailed).Inc()
		logging.L().Debug("notification not delivered",
			zap.String("session_id", c.GetSessionID()),
			zap.Error(err))
	}
}
