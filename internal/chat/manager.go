package chat

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// Transport is the connection a Session talks through. Implementations must
// call the handlers registered with On one at a time, in the order the events
// arrived on the connection, and must not call back into the Session from
// Emit.
type Transport interface {
	Emit(event string, payload any) error
	On(event string, handler protocol.Handler) protocol.Subscription
	ConnectionID() string // empty until the connect event
}

// Session is the chat synchronizer of one viewer. It owns the room table,
// the delivery state of every message, presence and typing indicators.
// All state sits behind mu: inbound events and UI calls are serialized on it.
type Session struct {
	mu        sync.Mutex
	transport Transport
	log       zerolog.Logger

	user    protocol.User
	store   *store
	outbox  map[string]string // own private message uuid -> conversation room
	current string
	peers   map[string]protocol.User // presence snapshot without ourselves
	online  int
	typing  *typing
	nextID  uint64
	subs    []protocol.Subscription
}

// NewSession creates the synchronizer for username and subscribes it to t.
// The broadcast room exists and is selected from the start.
func NewSession(t Transport, username string, log zerolog.Logger) (*Session, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, ErrMissingUsername
	}
	s := &Session{
		transport: t,
		log:       log,
		user:      protocol.User{Name: name},
		store:     newStore(log),
		outbox:    map[string]string{},
		current:   protocol.MainRoom,
		peers:     map[string]protocol.User{},
		typing:    newTyping(),
	}
	s.store.createPendingBucket(protocol.MainRoom)
	s.bind()
	return s, nil
}

// Close detaches the session from its transport.
func (s *Session) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// nextUUID hands out temporary ids. They only live as long as the session.
func (s *Session) nextUUID() string {
	id := strconv.FormatUint(s.nextID, 10)
	s.nextID++
	return id
}

func (s *Session) emit(event string, payload any) error {
	if err := s.transport.Emit(event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("[chat] emit failed")
		return errors.Wrapf(err, "emit %s", event)
	}
	return nil
}

// ChangeUsername renames the local user and tells the relay.
func (s *Session) ChangeUsername(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMissingUsername
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.user.Name {
		return nil
	}
	s.user.Name = name
	return s.emit(protocol.EventChangeUsername, name)
}

func (s *Session) User() protocol.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnlineCount is the number of connected users, the viewer included.
func (s *Session) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Peers returns a copy of the latest presence snapshot.
func (s *Session) Peers() map[string]protocol.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]protocol.User, len(s.peers))
	for id, u := range s.peers {
		out[id] = u
	}
	return out
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		User:         s.user,
		ConnectionID: s.transport.ConnectionID(),
		CurrentRoom:  s.current,
		RoomTitle:    s.roomTitle(s.current),
		Online:       s.online,
		Typing:       s.typing.status(),
	}
}
