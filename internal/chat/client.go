package chat

import (
	"encoding/json"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// bind registers one handler per inbound event. Payloads are decoded and
// validated before the session lock is taken; malformed ones are logged and
// dropped.
func (s *Session) bind() {
	t := s.transport
	s.subs = []protocol.Subscription{
		t.On(protocol.EventConnect, s.locked(func(json.RawMessage) { s.onConnect() })),
		t.On(protocol.EventDisconnect, s.locked(func(json.RawMessage) { s.onDisconnect() })),
		t.On(protocol.EventMessage, route[protocol.Message](s, protocol.EventMessage, s.onMessage)),
		t.On(protocol.EventMessageRegistered, route[protocol.Registered](s, protocol.EventMessageRegistered, s.onRegistered)),
		t.On(protocol.EventClientReceived, route[protocol.Message](s, protocol.EventClientReceived, s.onClientReceived)),
		t.On(protocol.EventClientRead, route[protocol.Message](s, protocol.EventClientRead, s.onClientRead)),
		t.On(protocol.EventUserJoined, route[protocol.Presence](s, protocol.EventUserJoined, s.onUserJoined)),
		t.On(protocol.EventUserLeft, route[protocol.Presence](s, protocol.EventUserLeft, s.onUserLeft)),
		t.On(protocol.EventUsersOnline, route[protocol.UsersOnline](s, protocol.EventUsersOnline, s.onUsersOnline)),
		t.On(protocol.EventTyping, route[protocol.Typing](s, protocol.EventTyping, s.onTyping)),
		t.On(protocol.EventResetTyping, route[protocol.Typing](s, protocol.EventResetTyping, s.onResetTyping)),
	}
}

func (s *Session) locked(h protocol.Handler) protocol.Handler {
	return func(data json.RawMessage) {
		s.mu.Lock()
		defer s.mu.Unlock()
		h(data)
	}
}

func route[T any, P interface {
	*T
	protocol.Validator
}](s *Session, event string, apply func(T)) protocol.Handler {
	return func(data json.RawMessage) {
		v, err := protocol.Decode[T, P](data)
		if err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("[chat] dropping payload")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		apply(v)
	}
}

// onConnect announces the user. A reconnect looks the same and re-announces
// under the new connection id; rooms keyed by the old id are left as they are.
func (s *Session) onConnect() {
	s.user.ID = s.transport.ConnectionID()
	s.log.Info().Str("id", s.user.ID).Msg("[chat] connected")
	_ = s.emit(protocol.EventUserJoined, s.user)
}

func (s *Session) onDisconnect() {
	s.log.Warn().Str("id", s.user.ID).Msg("[chat] disconnected")
	s.typing.composing = false
}

// onMessage queues a peer's message and, for private rooms, confirms
// reception to its author.
func (s *Session) onMessage(m protocol.Message) {
	m.Local = false
	msg := &m
	if !s.store.appendPending(m.Room, msg) {
		return
	}
	s.log.Debug().Str("room", m.Room).Str("uuid", m.UUID).Str("content", preview(m.Content)).Msg("[chat] message received")
	if msg.Private() {
		_ = s.emit(protocol.EventClientReceived, m)
	}
}

func (s *Session) onRegistered(r protocol.Registered) {
	s.reconcile(r.OldID, r.UUID, r.Room)
}

func (s *Session) onClientReceived(m protocol.Message) {
	s.markReceived(m.UUID, m.Room)
}

func (s *Session) onClientRead(m protocol.Message) {
	s.markRead(m.UUID, m.Room)
}
