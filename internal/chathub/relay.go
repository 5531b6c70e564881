package chathub

import (
	"strings"

	"go.uber.org/zap"

	"omechat/backend/internal/logging"
	"omechat/backend/internal/metrics"
	"omechat/backend/internal/models"
)

// RelayOutcome says what happened to a relayed frame. Only Delivered means
// the partner's channel accepted it; nothing is reported back to the sender.
type RelayOutcome int

const (
	RelayDelivered RelayOutcome = iota
	RelayNoPartner
	RelayStale
	RelaySendFailed
)

// Relay forwards signaling and chat frames between the two participants of
// a connection. It never inspects SDP or ICE payloads.
type Relay struct {
	matcher *Matcher
}

func NewRelay(m *Matcher) *Relay {
	return &Relay{matcher: m}
}

// RelayToPartner delivers frame to the partner of sessionID. A non-empty
// connectionID must name the sender's current connection, otherwise the
// frame belongs to a pairing that has already ended and is dropped.
func (r *Relay) RelayToPartner(sessionID, connectionID string, kind models.MessageType, frame []byte) RelayOutcome {
	route, ok := r.matcher.PartnerOf(sessionID)
	if !ok || route.Channel == nil {
		metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropNoPartner).Inc()
		return RelayNoPartner
	}
	if connectionID != "" && connectionID != route.ConnectionID {
		metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropStale).Inc()
		logging.L().Debug("dropping frame for stale connection",
			zap.String("session_id", sessionID),
			zap.String("connection_id", connectionID),
			zap.String("current_connection_id", route.ConnectionID))
		return RelayStale
	}
	if err := route.Channel.Send(frame); err != nil {
		metrics.DroppedMessagesTotal.WithLabelValues(metrics.DropSendFailed).Inc()
		logging.L().Debug("relay send failed",
			zap.String("session_id", sessionID),
			zap.String("partner_id", route.PartnerID),
			zap.Error(err))
		return RelaySendFailed
	}
	metrics.RelayedMessagesTotal.WithLabelValues(strings.ToLower(string(kind))).Inc()
	return RelayDelivered
}
