package chathub

import (
	stdjson "encoding/json"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrMalformedFrame wraps every decode failure of a client frame.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownMessage is a well-formed frame with a tag the engine does not handle.
	ErrUnknownMessage = errors.New("unknown message type")
)

// inboundEnvelope only requires "type" to be a string. Everything else is
// kept raw so a payload of an unexpected shape still routes.
type inboundEnvelope struct {
	Type         models.MessageType `json:"type"`
	ConnectionID stdjson.RawMessage `json:"connection_id"`
	Text         stdjson.RawMessage `json:"text"`
}

func decodeInbound(raw []byte) (models.InboundMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.InboundMessage{}, errors.Wrap(ErrMalformedFrame, err.Error())
	}
	if env.Type == "" {
		return models.InboundMessage{}, errors.Wrap(ErrMalformedFrame, "missing type")
	}
	return models.InboundMessage{
		Type:         env.Type,
		ConnectionID: stringOrEmpty(env.ConnectionID),
		Text:         env.Text,
	}, nil
}

func stringOrEmpty(raw stdjson.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// encode marshals an outbound frame. Every outbound type is a plain struct,
// so a failure here is a programming error; it is logged and nil returned.
func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		logging.L().Error("encode outbound frame", zap.Error(err))
		return nil
	}
	return b
}

func matchFoundFrame(connectionID string, initiator bool) []byte {
	return encode(models.MatchFoundMessage{
		Type:         models.TypeMatchFound,
		ConnectionID: connectionID,
		IsInitiator:  initiator,
	})
}

func queuePositionFrame(position, onlineCount int) []byte {
	return encode(models.QueuePositionMessage{
		Type:        models.TypeQueuePosition,
		Position:    position,
		OnlineCount: onlineCount,
	})
}

func onlineCountFrame(count int) []byte {
	return encode(models.OnlineCountMessage{Type: models.TypeOnlineCountUpdate, Count: count})
}

func matchEndedFrame(reason models.EndedReason) []byte {
	return encode(models.MatchEndedMessage{Type: models.TypeMatchEnded, Reason: reason})
}

// chatFrame re-wraps the chat payload without interpreting it. A frame with
// no text relays an empty string.
func chatFrame(text stdjson.RawMessage) []byte {
	if len(text) == 0 {
		text = emptyText
	}
	return encode(models.ChatRelayMessage{Type: models.TypeChatMessage, Text: text})
}

var emptyText = stdjson.RawMessage(`""`)

func bannedFrame(reason string) []byte {
	return encode(models.BannedMessage{Type: models.TypeBanned, Reason: reason})
}
