package relay

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

const sendBuffer = 64

// Peer is one websocket connection to the relay. Name is empty until the
// peer announces itself with user_joined.
type Peer struct {
	ID   string
	Name string
	Conn ConnLike
	Send chan []byte

	hub *Hub
}

type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

func (p *Peer) user() protocol.User {
	return protocol.User{ID: p.ID, Name: p.Name}
}

// ReadPump feeds the peer's frames to the hub until the connection fails.
func (p *Peer) ReadPump() {
	defer p.hub.Unregister(p)
	for {
		_, data, err := p.Conn.ReadMessage()
		if err != nil {
			p.hub.log.Debug().Err(err).Str("peer", p.ID).Msg("[relay] read")
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			p.hub.log.Warn().Str("peer", p.ID).Msg("[relay] malformed frame dropped")
			continue
		}
		p.hub.deliver(frame{peer: p, env: env})
	}
}

// WritePump drains Send into the connection. It returns when the hub closes
// Send.
func (p *Peer) WritePump() {
	for data := range p.Send {
		if err := p.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			p.hub.log.Debug().Err(err).Str("peer", p.ID).Msg("[relay] write")
		}
	}
	_ = p.Conn.Close()
}
