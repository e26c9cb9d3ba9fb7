package chathub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"pulse/backend/internal/models"
	"pulse/backend/internal/observability"
)

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrReservedRoom  = errors.New("room name is reserved")
)

// State is the lifecycle position of a Session.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PresenceTracker is the presence bookkeeping a session performs.
// *storage.PresenceStore implements it.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, userID, sessionID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// HistoryRecorder appends delivered messages to the bounded history.
// *storage.HistoryStore implements it.
type HistoryRecorder interface {
	Record(ctx context.Context, env models.Envelope) error
}

// Orchestrator opens sessions for accepted connections and owns the
// collaborators they dispatch to.
type Orchestrator struct {
	hub      *Hub
	router   *Router
	presence PresenceTracker
	history  HistoryRecorder

	// Presence transitions of one user are serialized so a reconnect can
	// not interleave with the offline bookkeeping of its previous connection.
	userLocks keyedMutex
}

func NewOrchestrator(hub *Hub, presence PresenceTracker, history HistoryRecorder) *Orchestrator {
	return &Orchestrator{
		hub:      hub,
		router:   NewRouter(hub),
		presence: presence,
		history:  history,
	}
}

// Hub returns the broadcaster shared by all sessions.
func (o *Orchestrator) Hub() *Hub {
	return o.hub
}

// Open moves an accepted connection to Active: it registers the client,
// joins its private room, records presence and announces the user online
// when this is its first live connection.
func (o *Orchestrator) Open(ctx context.Context, id Identity, client Client) (*Session, error) {
	s := &Session{o: o, identity: id, client: client, state: StateAuthenticated}

	unlock := o.userLocks.Lock(id.UserID)
	defer unlock()

	first, err := o.hub.Register(client)
	if err != nil {
		s.state = StateClosed
		return nil, err
	}
	o.hub.Join(client.ID(), PrivateRoom(id.UserID))
	observability.IncWSActive()

	if err := o.presence.MarkOnline(ctx, id.UserID, client.ID()); err != nil {
		observability.IncStoreError("presence_online")
		log.Printf("ERROR: failed to mark user %s online: %v", id.UserID, err)
	}
	if first {
		o.router.Deliver(presenceEnvelope(id.UserID, models.StatusOnline), Broadcast(), nil)
	}

	s.state = StateActive
	log.Printf("User connected: %s (connection %s)", id.UserID, client.ID())
	return s, nil
}

// Session is the per-connection state machine. Handle is called from a
// single goroutine so events of one connection keep their arrival order.
type Session struct {
	o        *Orchestrator
	identity Identity
	client   Client

	mu    sync.Mutex
	state State
}

func (s *Session) Identity() Identity { return s.identity }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle dispatches one inbound event. Store failures are logged and do not
// surface; only events that could not be applied return an error.
func (s *Session) Handle(ctx context.Context, ev InboundEvent) error {
	if s.State() != StateActive {
		return ErrSessionClosed
	}
	observability.IncWSEvent(ev.Name())

	switch ev := ev.(type) {
	case SendMessage:
		if err := checkRoom(ev.Room); err != nil {
			return err
		}
		s.sendMessage(ctx, ev)
	case Typing:
		if err := checkRoom(ev.Room); err != nil {
			return err
		}
		s.typing(ev)
	case JoinRoom:
		if err := checkRoom(ev.Room); err != nil {
			return err
		}
		s.joinRoom(ev.Room)
	case LeaveRoom:
		if err := checkRoom(ev.Room); err != nil {
			return err
		}
		s.leaveRoom(ev.Room)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}

func (s *Session) sendMessage(ctx context.Context, ev SendMessage) {
	userID := s.identity.UserID
	now := time.Now().UTC()
	env := models.Envelope{
		Type: models.EventMessage,
		Payload: models.MessagePayload{
			From:      userID,
			Content:   ev.Content,
			To:        ev.To,
			Room:      ev.Room,
			Timestamp: now,
		},
		UserID:    userID,
		Timestamp: now,
	}

	target := Broadcast()
	switch {
	case ev.To != "":
		target = ToUser(ev.To)
	case ev.Room != "":
		target = ToRoom(ev.Room)
	}
	s.o.router.Deliver(env, target, s.client)

	if err := s.o.history.Record(ctx, env); err != nil {
		observability.IncStoreError("history_record")
		log.Printf("ERROR: failed to record message from %s in history: %v", userID, err)
	}
}

func (s *Session) typing(ev Typing) {
	env := models.NewEnvelope(models.EventTyping, models.TypingPayload{
		UserID:   s.identity.UserID,
		IsTyping: ev.IsTyping,
	}, s.identity.UserID)

	switch {
	case ev.To != "":
		s.o.router.Deliver(env, ToUser(ev.To), s.client)
	case ev.Room != "":
		s.o.router.Deliver(env, ToRoom(ev.Room), s.client)
	}
}

// checkRoom rejects client-supplied names in the private room namespace.
// Private rooms are addressed with "to", never by name.
func checkRoom(room string) error {
	if strings.HasPrefix(room, privateRoomPrefix) {
		return fmt.Errorf("%w: %s", ErrReservedRoom, room)
	}
	return nil
}

func (s *Session) joinRoom(room string) {
	s.o.hub.Join(s.client.ID(), room)
	s.notifyRoom(room, fmt.Sprintf("User %s joined the room", s.identity.UserID))
}

func (s *Session) leaveRoom(room string) {
	s.o.hub.Leave(s.client.ID(), room)
	s.notifyRoom(room, fmt.Sprintf("User %s left the room", s.identity.UserID))
}

func (s *Session) notifyRoom(room, text string) {
	env := models.NewEnvelope(models.EventNotification, models.NotificationPayload{Message: text, Room: room}, "")
	s.o.router.Deliver(env, ToRoom(room), s.client)
}

// Close ends the session. It is safe to call more than once. The user is
// marked offline only when its last live connection goes away.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	userID := s.identity.UserID
	unlock := s.o.userLocks.Lock(userID)
	defer unlock()

	last := s.o.hub.Unregister(s.client)
	observability.DecWSActive()
	log.Printf("User disconnected: %s (connection %s)", userID, s.client.ID())
	if !last {
		return
	}

	if err := s.o.presence.MarkOffline(ctx, userID); err != nil {
		observability.IncStoreError("presence_offline")
		log.Printf("ERROR: failed to mark user %s offline: %v", userID, err)
	}
	s.o.router.Deliver(presenceEnvelope(userID, models.StatusOffline), Broadcast(), nil)
}

func presenceEnvelope(userID string, status models.PresenceStatus) models.Envelope {
	return models.NewEnvelope(models.EventPresence, models.PresencePayload{UserID: userID, Status: status}, "")
}

type refMutex struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds
// or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
