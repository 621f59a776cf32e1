package chat

import (
	"strings"

	"github.com/aquilax/truncate"
	"github.com/pkg/errors"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

func preview(content string) string {
	return truncate.Truncate(content, 32, "...", truncate.PositionEnd)
}

// Send posts content to the selected room. The returned copy carries the
// temporary uuid the relay will later swap for a permanent one.
//
// Broadcast messages are filed under MainRoom. Private messages are filed
// under the sender's own connection id, which is how the peer's side keys
// its room for us; locally they are shown in the peer's room and tracked in
// the outbox so acknowledgements addressed to our id find them.
func (s *Session) Send(content string) (protocol.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		return protocol.Message{}, ErrEmptyMessage
	}
	local := s.transport.ConnectionID()
	if local == "" {
		return protocol.Message{}, ErrNotConnected
	}

	target := s.current
	filed := protocol.MainRoom
	if target != protocol.MainRoom {
		filed = local
	}
	m := &protocol.Message{
		UUID:      s.nextUUID(),
		User:      s.user,
		Sender:    local,
		Recipient: target,
		Room:      filed,
		Content:   content,
		State:     protocol.ReadyToSend,
		Local:     true,
	}
	if !s.store.appendPending(target, m) {
		return *m, errors.Wrapf(ErrUnknownRoom, "send to %s", target)
	}
	if m.Private() {
		s.outbox[m.UUID] = target
	}

	err := s.emit(protocol.EventMessage, *m)
	_ = s.resetTyping()
	if err != nil {
		return *m, err
	}
	m.Advance(protocol.ClientSent)
	s.log.Debug().Str("room", target).Str("uuid", m.UUID).Str("content", preview(content)).Msg("[chat] message sent")
	return *m, nil
}

// resolve maps the room named by an acknowledgement to the room the message
// is stored in. Acks for our own private messages name our connection id.
func (s *Session) resolve(room, uuid string) (string, bool) {
	if local := s.transport.ConnectionID(); local != "" && room == local {
		conv, ok := s.outbox[uuid]
		return conv, ok
	}
	return room, s.store.has(room)
}

// reconcile swaps a temporary id for the relay's permanent one and marks the
// message SERVER_RECEIVED. Unknown ids are stale duplicates and ignored, so
// applying the same registration twice changes nothing.
func (s *Session) reconcile(oldID, newID, room string) bool {
	conv, ok := s.resolve(room, oldID)
	if !ok {
		s.log.Debug().Str("room", room).Str("old_id", oldID).Msg("[chat] registration for unknown room ignored")
		return false
	}
	m, ok := s.store.reindex(conv, oldID, newID)
	if !ok {
		s.log.Debug().Str("room", conv).Str("old_id", oldID).Msg("[chat] stale registration ignored")
		return false
	}
	m.Advance(protocol.ServerReceived)
	if _, tracked := s.outbox[oldID]; tracked {
		delete(s.outbox, oldID)
		s.outbox[newID] = conv
	}
	return true
}

func (s *Session) markReceived(uuid, room string) bool {
	return s.markOwn(uuid, room, protocol.ClientReceived)
}

func (s *Session) markRead(uuid, room string) bool {
	return s.markOwn(uuid, room, protocol.ClientRead)
}

// markOwn advances the viewer's own copy of a message after a peer
// acknowledged it. Acks for messages we no longer track are ignored.
func (s *Session) markOwn(uuid, room string, state protocol.DeliveryState) bool {
	conv, ok := s.resolve(room, uuid)
	if !ok {
		s.log.Debug().Str("room", room).Str("uuid", uuid).Stringer("state", state).Msg("[chat] ack for unknown room ignored")
		return false
	}
	m, ok := s.store.lookup(conv, uuid)
	if !ok || !m.Local {
		s.log.Debug().Str("room", conv).Str("uuid", uuid).Stringer("state", state).Msg("[chat] ack for unknown message ignored")
		return false
	}
	return m.Advance(state)
}
