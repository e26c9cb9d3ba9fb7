package chathub

import "pulse/backend/internal/models"

// Broadcaster is the fan-out surface the router needs. *Hub implements it.
type Broadcaster interface {
	EmitAll(env models.Envelope) int
	EmitRoom(room string, env models.Envelope, exceptID string) int
	EmitTo(connID string, env models.Envelope) bool
}

type targetKind int

const (
	targetBroadcast targetKind = iota
	targetUser
	targetRoom
)

// Target is exactly one delivery destination: a user, a room or everyone.
type Target struct {
	kind targetKind
	id   string
}

func ToUser(userID string) Target { return Target{kind: targetUser, id: userID} }
func ToRoom(room string) Target   { return Target{kind: targetRoom, id: room} }
func Broadcast() Target           { return Target{kind: targetBroadcast} }

func (t Target) String() string {
	switch t.kind {
	case targetUser:
		return "user:" + t.id
	case targetRoom:
		return "room:" + t.id
	default:
		return "broadcast"
	}
}

// Router maps an outbound envelope onto the hub according to its target.
type Router struct {
	hub Broadcaster
}

func NewRouter(hub Broadcaster) *Router {
	return &Router{hub: hub}
}

// Deliver fans env out to target and returns the number of copies enqueued.
//
//   - ToUser: every connection of the user. Message envelopes are also echoed
//     once to the sending connection.
//   - ToRoom: every member of the room except the sending connection.
//   - Broadcast: every connection, the sender included.
//
// sender may be nil for server-originated envelopes.
func (r *Router) Deliver(env models.Envelope, target Target, sender Client) int {
	senderID := ""
	if sender != nil {
		senderID = sender.ID()
	}

	switch target.kind {
	case targetUser:
		echo := senderID != "" && env.Type == models.EventMessage
		if !echo {
			return r.hub.EmitRoom(PrivateRoom(target.id), env, "")
		}
		// The sending connection gets exactly one copy even when it
		// addresses its own user.
		n := r.hub.EmitRoom(PrivateRoom(target.id), env, senderID)
		if r.hub.EmitTo(senderID, env) {
			n++
		}
		return n
	case targetRoom:
		return r.hub.EmitRoom(target.id, env, senderID)
	default:
		return r.hub.EmitAll(env)
	}
}
