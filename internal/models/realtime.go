package models

import (
	"encoding/json"
	"time"
)

// EventType names both the outbound websocket event and the envelope type.
type EventType string

const (
	EventMessage      EventType = "message"
	EventNotification EventType = "notification"
	EventTyping       EventType = "typing"
	EventPresence     EventType = "presence"
)

// PresenceStatus is carried by presence envelopes.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Envelope is the unit delivered to websocket clients and stored in the
// chat history list.
type Envelope struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope stamps an envelope with the current time.
func NewEnvelope(t EventType, payload any, userID string) Envelope {
	return Envelope{
		Type:      t,
		Payload:   payload,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

type MessagePayload struct {
	From      string    `json:"from"`
	Content   string    `json:"content"`
	To        string    `json:"to,omitempty"`
	Room      string    `json:"room,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type PresencePayload struct {
	UserID string         `json:"userId"`
	Status PresenceStatus `json:"status"`
}

type NotificationPayload struct {
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}

// InboundFrame is the JSON frame a client writes on the socket.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PresenceRecord is the per-user presence state kept in Redis.
type PresenceRecord struct {
	UserID     string     `json:"userId"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
}
