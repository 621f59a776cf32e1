package chat

import (
	"sort"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// promote drains the room's pending messages into its archive and, for
// private rooms, sends one read receipt per inbound message.
func (s *Session) promote(id string) []protocol.Message {
	read := s.store.drainPending(id)
	if id != protocol.MainRoom {
		for _, m := range read {
			_ = s.emit(protocol.EventClientRead, *m)
		}
	}
	return s.store.messages(id)
}

// Messages returns the current room's messages in arrival order. Reading
// the list is what marks pending messages as read.
func (s *Session) Messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promote(s.current)
}

func (s *Session) roomTitle(id string) string {
	if id == protocol.MainRoom {
		return "Main room"
	}
	if u, ok := s.peers[id]; ok && u.Name != "" {
		return u.Name
	}
	return id
}

// Rooms lists every room: the broadcast room first, then private rooms by
// title. Listing does not promote anything.
func (s *Session) Rooms() []RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]RoomInfo, 0, len(s.store.rooms))
	for id := range s.store.rooms {
		kind := RoomPrivate
		if id == protocol.MainRoom {
			kind = RoomBroadcast
		}
		list = append(list, RoomInfo{
			ID:       id,
			Kind:     kind,
			Title:    s.roomTitle(id),
			Pending:  s.store.pendingLen(id),
			Archived: s.store.archiveLen(id),
			Current:  id == s.current,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if (list[i].Kind == RoomBroadcast) != (list[j].Kind == RoomBroadcast) {
			return list[i].Kind == RoomBroadcast
		}
		if list[i].Title != list[j].Title {
			return list[i].Title < list[j].Title
		}
		return list[i].ID < list[j].ID
	})
	return list
}
