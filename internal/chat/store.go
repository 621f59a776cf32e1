package chat

import (
	"github.com/elliotchance/orderedmap"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// room holds one room's messages: a FIFO of pending messages the viewer has
// not looked at yet, and the archive keyed by uuid in insertion order.
type room struct {
	id      string
	pending []*protocol.Message
	archive *orderedmap.OrderedMap // uuid -> *protocol.Message
}

func newRoom(id string) *room {
	return &room{id: id, archive: orderedmap.NewOrderedMap()}
}

func (r *room) archived(uuid string) (*protocol.Message, bool) {
	v, ok := r.archive.Get(uuid)
	if !ok {
		return nil, false
	}
	return v.(*protocol.Message), true
}

func (r *room) pendingIndex(uuid string) int {
	for i, m := range r.pending {
		if m.UUID == uuid {
			return i
		}
	}
	return -1
}

func (r *room) contains(uuid string) bool {
	if _, ok := r.archive.Get(uuid); ok {
		return true
	}
	return r.pendingIndex(uuid) >= 0
}

// messages copies the archive in order.
func (r *room) messages() []protocol.Message {
	out := make([]protocol.Message, 0, r.archive.Len())
	for el := r.archive.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*protocol.Message))
	}
	return out
}

// store is the Message Store: every room the session knows about.
type store struct {
	rooms map[string]*room
	log   zerolog.Logger
}

func newStore(log zerolog.Logger) *store {
	return &store{rooms: map[string]*room{}, log: log}
}

func (st *store) has(id string) bool {
	_, ok := st.rooms[id]
	return ok
}

// createPendingBucket registers an empty room. It reports false if the room
// already exists, in which case nothing changes.
func (st *store) createPendingBucket(id string) bool {
	if st.has(id) {
		return false
	}
	st.rooms[id] = newRoom(id)
	return true
}

// removeRoom deletes every pending and archived message of the room and the
// room itself. It returns how many messages were dropped.
func (st *store) removeRoom(id string) int {
	r, ok := st.rooms[id]
	if !ok {
		return 0
	}
	delete(st.rooms, id)
	return len(r.pending) + r.archive.Len()
}

// appendPending queues m in the room's pending bucket. Unknown rooms are not
// an error: the message is dropped and false returned.
func (st *store) appendPending(id string, m *protocol.Message) bool {
	r, ok := st.rooms[id]
	if !ok {
		st.log.Warn().Str("room", id).Str("uuid", m.UUID).Msg("[chat] could not handle room; ignoring message")
		return false
	}
	if r.contains(m.UUID) {
		st.log.Debug().Str("room", id).Str("uuid", m.UUID).Msg("[chat] duplicate message ignored")
		return false
	}
	r.pending = append(r.pending, m)
	return true
}

// drainPending promotes every pending message of the room into its archive.
// Inbound messages are stamped CLIENT_READ on the way; the viewer's own
// copies keep their delivery state. It returns the inbound messages that
// were marked read.
func (st *store) drainPending(id string) []*protocol.Message {
	r, ok := st.rooms[id]
	if !ok || len(r.pending) == 0 {
		return nil
	}
	var read []*protocol.Message
	for _, m := range r.pending {
		if !m.Local {
			m.Advance(protocol.ClientRead)
			read = append(read, m)
		}
		r.archive.Set(m.UUID, m)
	}
	r.pending = r.pending[:0]
	return read
}

// lookup finds a message by its current uuid in the archive, then in the
// pending bucket.
func (st *store) lookup(id, uuid string) (*protocol.Message, bool) {
	r, ok := st.rooms[id]
	if !ok {
		return nil, false
	}
	if m, ok := r.archived(uuid); ok {
		return m, true
	}
	if i := r.pendingIndex(uuid); i >= 0 {
		return r.pending[i], true
	}
	return nil, false
}

// reindex moves a message from oldID to newID. The old key is gone and the
// new key present when it returns; a pending message keeps its queue
// position. Missing oldID or an already taken newID leave the room untouched.
func (st *store) reindex(id, oldID, newID string) (*protocol.Message, bool) {
	r, ok := st.rooms[id]
	if !ok || oldID == newID || r.contains(newID) {
		return nil, false
	}
	if m, ok := r.archived(oldID); ok {
		r.archive.Delete(oldID)
		m.UUID = newID
		r.archive.Set(newID, m)
		return m, true
	}
	if i := r.pendingIndex(oldID); i >= 0 {
		m := r.pending[i]
		m.UUID = newID
		return m, true
	}
	return nil, false
}

func (st *store) pendingLen(id string) int {
	if r, ok := st.rooms[id]; ok {
		return len(r.pending)
	}
	return 0
}

func (st *store) archiveLen(id string) int {
	if r, ok := st.rooms[id]; ok {
		return r.archive.Len()
	}
	return 0
}

func (st *store) messages(id string) []protocol.Message {
	if r, ok := st.rooms[id]; ok {
		return r.messages()
	}
	return nil
}
