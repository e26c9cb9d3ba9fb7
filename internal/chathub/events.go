package chathub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pulse/backend/internal/models"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrBadPayload   = errors.New("malformed event payload")
)

const (
	eventMessage   = "message"
	eventTyping    = "typing"
	eventJoinRoom  = "join_room"
	eventLeaveRoom = "leave_room"
)

// InboundEvent is one of SendMessage, Typing, JoinRoom or LeaveRoom.
type InboundEvent interface {
	Name() string
}

// SendMessage addresses To if set, else Room if set, else everyone.
type SendMessage struct {
	To      string `json:"to,omitempty"`
	Room    string `json:"room,omitempty"`
	Content string `json:"content"`
}

// Typing addresses To if set, else Room. With neither it goes nowhere.
type Typing struct {
	To       string `json:"to,omitempty"`
	Room     string `json:"room,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

type JoinRoom struct {
	Room string
}

type LeaveRoom struct {
	Room string
}

func (SendMessage) Name() string { return eventMessage }
func (Typing) Name() string      { return eventTyping }
func (JoinRoom) Name() string    { return eventJoinRoom }
func (LeaveRoom) Name() string   { return eventLeaveRoom }

// DecodeInbound parses a client frame of the form {"event": ..., "data": ...}.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch frame.Event {
	case eventMessage:
		var ev SendMessage
		if err := decodeData(frame.Data, &ev); err != nil {
			return nil, err
		}
		if strings.TrimSpace(ev.Content) == "" {
			return nil, fmt.Errorf("%w: empty message content", ErrBadPayload)
		}
		return ev, nil
	case eventTyping:
		var ev Typing
		if err := decodeData(frame.Data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case eventJoinRoom:
		room, err := decodeRoom(frame.Data)
		if err != nil {
			return nil, err
		}
		return JoinRoom{Room: room}, nil
	case eventLeaveRoom:
		room, err := decodeRoom(frame.Data)
		if err != nil {
			return nil, err
		}
		return LeaveRoom{Room: room}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}
}

func decodeData(data json.RawMessage, dest any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrBadPayload)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// decodeRoom accepts a bare string or {"roomId": "..."}.
func decodeRoom(data json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil {
		var obj struct {
			RoomID string `json:"roomId"`
		}
		if err := decodeData(data, &obj); err != nil {
			return "", err
		}
		room = obj.RoomID
	}

	room = strings.TrimSpace(room)
	if room == "" {
		return "", fmt.Errorf("%w: empty room id", ErrBadPayload)
	}
	return room, nil
}
