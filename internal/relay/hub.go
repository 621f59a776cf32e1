// Package relay is the server the chat synchronizer connects to. It assigns
// connection ids and permanent message ids and routes every event between
// peers.
package relay

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

type frame struct {
	peer *Peer
	env  protocol.Envelope
}

// Hub owns the peer table. Every routing decision happens on the Start
// goroutine, so a sender always gets message_registered before any
// acknowledgement of the same message can come back.
type Hub struct {
	mu    sync.RWMutex
	peers map[string]*Peer

	register   chan *Peer
	unregister chan *Peer
	inbound    chan frame
	quit       chan struct{}

	journal *Journal
	log     zerolog.Logger
	newID   func() string
}

func NewHub(journal *Journal, log zerolog.Logger) *Hub {
	return &Hub{
		peers:      map[string]*Peer{},
		register:   make(chan *Peer),
		unregister: make(chan *Peer),
		inbound:    make(chan frame, 64),
		quit:       make(chan struct{}),
		journal:    journal,
		log:        log,
		newID:      uuid.NewString,
	}
}

// NewPeer wraps conn with a fresh connection id. The peer is not routed to
// until it is registered.
func (h *Hub) NewPeer(conn ConnLike) *Peer {
	return &Peer{
		ID:   h.newID(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		hub:  h,
	}
}

func (h *Hub) Register(p *Peer) {
	select {
	case h.register <- p:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(p *Peer) {
	select {
	case h.unregister <- p:
	case <-h.quit:
	}
}

func (h *Hub) deliver(f frame) {
	select {
	case h.inbound <- f:
	case <-h.quit:
	}
}

// Done is closed when Start returns.
func (h *Hub) Done() <-chan struct{} { return h.quit }

// Start runs the routing loop until ctx is done. It must be called once.
func (h *Hub) Start(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case <-ctx.Done():
			return

		case p := <-h.register:
			h.mu.Lock()
			h.peers[p.ID] = p
			h.mu.Unlock()
			h.log.Info().Str("peer", p.ID).Msg("[relay] connected")
			h.send(p, protocol.EventConnect, protocol.Connected{ID: p.ID})

		case p := <-h.unregister:
			h.mu.Lock()
			_, ok := h.peers[p.ID]
			delete(h.peers, p.ID)
			h.mu.Unlock()
			if !ok {
				continue
			}
			close(p.Send)
			h.log.Info().Str("peer", p.ID).Str("name", p.Name).Msg("[relay] disconnected")
			if p.Name != "" {
				h.broadcast(p.ID, protocol.EventUserLeft, protocol.Presence{User: p.user(), SocketID: p.ID})
				h.broadcastPresence()
			}

		case f := <-h.inbound:
			h.route(f.peer, f.env)
		}
	}
}

func (h *Hub) route(p *Peer, env protocol.Envelope) {
	h.mu.RLock()
	_, live := h.peers[p.ID]
	h.mu.RUnlock()
	if !live {
		return
	}
	switch env.Event {
	case protocol.EventUserJoined:
		h.onUserJoined(p, env.Data)
	case protocol.EventChangeUsername:
		h.onChangeUsername(p, env.Data)
	case protocol.EventMessage:
		h.onMessage(p, env.Data)
	case protocol.EventClientReceived, protocol.EventClientRead:
		h.onAck(p, env.Event, env.Data)
	case protocol.EventTyping, protocol.EventResetTyping:
		h.onTyping(p, env.Event, env.Data)
	default:
		h.log.Debug().Str("peer", p.ID).Str("event", env.Event).Msg("[relay] unknown event dropped")
	}
}

func (h *Hub) onUserJoined(p *Peer, data json.RawMessage) {
	var u protocol.User
	if err := json.Unmarshal(data, &u); err != nil {
		h.log.Warn().Err(err).Str("peer", p.ID).Msg("[relay] bad user_joined")
		return
	}
	h.rename(p, u.Name)
	h.broadcast(p.ID, protocol.EventUserJoined, protocol.Presence{User: p.user(), SocketID: p.ID})
	h.broadcastPresence()
}

func (h *Hub) onChangeUsername(p *Peer, data json.RawMessage) {
	name, err := protocol.DecodeName(data)
	if err != nil {
		h.log.Warn().Err(err).Str("peer", p.ID).Msg("[relay] bad change_username")
		return
	}
	h.rename(p, name)
	h.broadcastPresence()
}

func (h *Hub) rename(p *Peer, name string) {
	h.mu.Lock()
	p.Name = SanitizeName(name)
	h.mu.Unlock()
}

// onMessage registers a message under a permanent id, confirms it to the
// sender and forwards it. Private messages are filed under the sender's id,
// which is the room the recipient keeps for that sender.
func (h *Hub) onMessage(p *Peer, data json.RawMessage) {
	m, err := protocol.Decode[protocol.Message](data)
	if err != nil {
		h.log.Warn().Err(err).Str("peer", p.ID).Msg("[relay] bad message")
		return
	}
	oldID := m.UUID
	m.UUID = h.newID()
	m.Sender = p.ID
	m.User = p.user()
	m.State = protocol.ServerReceived

	var to *Peer
	if m.Room == protocol.MainRoom {
		m.Recipient = protocol.MainRoom
	} else {
		h.mu.RLock()
		to = h.peers[m.Recipient]
		h.mu.RUnlock()
		if to == nil {
			h.log.Debug().Str("peer", p.ID).Str("recipient", m.Recipient).Msg("[relay] recipient gone; message dropped")
			return
		}
		m.Room = p.ID
	}

	h.send(p, protocol.EventMessageRegistered, protocol.Registered{Room: m.Room, OldID: oldID, UUID: m.UUID})
	if err := h.journal.Append(m); err != nil {
		h.log.Error().Err(err).Str("uuid", m.UUID).Msg("[relay] journal append failed")
	}
	if to != nil {
		h.send(to, protocol.EventMessage, m)
		return
	}
	h.broadcast(p.ID, protocol.EventMessage, m)
}

// onAck hands a delivery or read receipt back to the message's author.
func (h *Hub) onAck(p *Peer, event string, data json.RawMessage) {
	m, err := protocol.Decode[protocol.Message](data)
	if err != nil {
		h.log.Warn().Err(err).Str("peer", p.ID).Str("event", event).Msg("[relay] bad receipt")
		return
	}
	h.mu.RLock()
	author := h.peers[m.Sender]
	h.mu.RUnlock()
	if author == nil || author == p {
		return
	}
	h.send(author, event, m)
}

func (h *Hub) onTyping(p *Peer, event string, data json.RawMessage) {
	t, err := protocol.Decode[protocol.Typing](data)
	if err != nil {
		h.log.Warn().Err(err).Str("peer", p.ID).Str("event", event).Msg("[relay] bad typing signal")
		return
	}
	t.Sender = p.ID
	if t.Room == protocol.MainRoom {
		h.broadcast(p.ID, event, t)
		return
	}
	h.mu.RLock()
	to := h.peers[t.Room]
	h.mu.RUnlock()
	if to != nil {
		h.send(to, event, t)
	}
}

// broadcastPresence sends every peer the users that have announced
// themselves.
func (h *Hub) broadcastPresence() {
	h.mu.RLock()
	online := protocol.UsersOnline{}
	for id, p := range h.peers {
		if p.Name != "" {
			online[id] = p.user()
		}
	}
	h.mu.RUnlock()
	h.broadcast("", protocol.EventUsersOnline, online)
}

// broadcast sends to every peer except the one with id except.
func (h *Hub) broadcast(except, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, p := range h.peers {
		if id != except {
			h.push(p, data)
		}
	}
}

func (h *Hub) send(p *Peer, event string, payload any) {
	if data, ok := h.encode(event, payload); ok {
		h.push(p, data)
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("[relay] encode")
		return nil, false
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("[relay] encode")
		return nil, false
	}
	return data, true
}

// push never blocks the hub: a peer whose buffer is full misses the frame.
func (h *Hub) push(p *Peer, data []byte) {
	select {
	case p.Send <- data:
	default:
		h.log.Warn().Str("peer", p.ID).Msg("[relay] send buffer full; frame dropped")
	}
}

// ListUsers returns the announced users sorted by name, leaving out the one
// whose id or name equals exclude.
func (h *Hub) ListUsers(exclude string) []protocol.User {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]protocol.User, 0, len(h.peers))
	for id, p := range h.peers {
		if p.Name == "" || (exclude != "" && (exclude == id || exclude == p.Name)) {
			continue
		}
		out = append(out, p.user())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Recent returns the newest journaled messages.
func (h *Hub) Recent(limit int) ([]protocol.Message, error) {
	return h.journal.Recent(limit)
}
