package models

import "encoding/json"

// MessageType is the tag carried in the "type" field of every frame on the
// signaling channel.
type MessageType string

// Client -> server.
const (
	TypeJoinQueue    MessageType = "JOIN_QUEUE"
	TypeLeaveQueue   MessageType = "LEAVE_QUEUE"
	TypeNext         MessageType = "NEXT"
	TypeOffer        MessageType = "OFFER"
	TypeAnswer       MessageType = "ANSWER"
	TypeIceCandidate MessageType = "ICE_CANDIDATE"
	TypeChatMessage  MessageType = "CHAT_MESSAGE"
)

// Server -> client.
const (
	TypeMatchFound        MessageType = "MATCH_FOUND"
	TypeQueuePosition     MessageType = "QUEUE_POSITION"
	TypeOnlineCountUpdate MessageType = "ONLINE_COUNT_UPDATE"
	TypeMatchEnded        MessageType = "MATCH_ENDED"
	TypeBanned            MessageType = "BANNED"
)

// InboundMessage is what the engine reads from a client frame to route it.
// Signaling payloads (sdp, candidate) are never decoded; the raw frame is
// forwarded as is.
type InboundMessage struct {
	Type MessageType
	// ConnectionID is empty when the field is absent or not a JSON string.
	ConnectionID string
	// Text is the chat payload exactly as the client sent it.
	Text json.RawMessage
}

type MatchFoundMessage struct {
	Type         MessageType `json:"type"`
	ConnectionID string      `json:"connection_id"`
	IsInitiator  bool        `json:"is_initiator"`
}

type QueuePositionMessage struct {
	Type        MessageType `json:"type"`
	Position    int         `json:"position"`
	OnlineCount int         `json:"online_count"`
}

type OnlineCountMessage struct {
	Type  MessageType `json:"type"`
	Count int         `json:"count"`
}

type MatchEndedMessage struct {
	Type   MessageType `json:"type"`
	Reason EndedReason `json:"reason"`
}

type ChatRelayMessage struct {
	Type MessageType     `json:"type"`
	Text json.RawMessage `json:"text"`
}

type BannedMessage struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

// OnlineStats is a point-in-time snapshot of the matchmaking engine.
type OnlineStats struct {
	OnlineCount       int `json:"online_users"`
	QueueSize         int `json:"in_queue"`
	ActiveConnections int `json:"active_connections"`
	Registered        int `json:"registered"`
}
