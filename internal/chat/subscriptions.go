package chat

import (
	"github.com/pkg/errors"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// onUsersOnline replaces the presence snapshot and opens a private room for
// every peer we have no room for yet. Rooms of peers missing from the
// snapshot stay until their user_left arrives.
func (s *Session) onUsersOnline(users protocol.UsersOnline) {
	s.online = len(users)
	local := s.transport.ConnectionID()
	peers := make(map[string]protocol.User, len(users))
	for id, u := range users {
		if id == local {
			continue
		}
		u.ID = id
		peers[id] = u
		if s.store.createPendingBucket(id) {
			s.log.Debug().Str("room", id).Str("name", u.Name).Msg("[chat] private room opened")
		}
	}
	s.peers = peers
}

func (s *Session) onUserJoined(p protocol.Presence) {
	s.notice(p.User, "joined the conversation")
}

// onUserLeft tears the peer's room down with all of its history. A later
// acknowledgement for that room finds nothing and is ignored.
func (s *Session) onUserLeft(p protocol.Presence) {
	s.notice(p.User, "left the conversation")

	dropped := s.store.removeRoom(p.SocketID)
	for uuid, conv := range s.outbox {
		if conv == p.SocketID {
			delete(s.outbox, uuid)
		}
	}
	delete(s.peers, p.SocketID)
	s.typing.remove(p.SocketID)
	if s.current == p.SocketID {
		s.current = protocol.MainRoom
		s.typing.clear()
		s.typing.composing = false
	}
	s.log.Debug().Str("room", p.SocketID).Int("dropped", dropped).Msg("[chat] private room closed")
}

// notice files a system line in the broadcast room.
func (s *Session) notice(u protocol.User, content string) {
	s.store.appendPending(protocol.MainRoom, &protocol.Message{
		UUID:    s.nextUUID(),
		User:    u,
		Room:    protocol.MainRoom,
		Content: content,
	})
}

// SelectRoom makes id the current room and returns its messages, promoting
// whatever was pending. Switching clears every typing indicator and tells the
// old room we stopped typing. Selecting the current room only reads it.
func (s *Session) SelectRoom(id string) ([]protocol.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.has(id) {
		return nil, errors.Wrapf(ErrUnknownRoom, "select %s", id)
	}
	if s.current != id {
		if s.typing.composing {
			_ = s.resetTyping()
		}
		s.log.Debug().Str("from", s.current).Str("to", id).Msg("[chat] enter room")
		s.current = id
		s.typing.clear()
	}
	return s.promote(id), nil
}

// EnterMainRoom selects the broadcast room.
func (s *Session) EnterMainRoom() ([]protocol.Message, error) {
	return s.SelectRoom(protocol.MainRoom)
}
