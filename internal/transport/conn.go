// Package transport is the client side of the relay connection: a gorilla
// websocket carrying one JSON envelope per text frame.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 1 << 20
)

// ErrClosed is returned by Emit when no connection is open.
var ErrClosed = errors.New("transport: connection closed")

// Conn satisfies chat.Transport. Handlers run on the read goroutine, one at
// a time and in frame order.
type Conn struct {
	url    string
	log    zerolog.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	id       string
	handlers map[string]map[uint64]protocol.Handler
	nextSub  uint64

	writeMu sync.Mutex
	ws      *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func New(url string, log zerolog.Logger) *Conn {
	return &Conn{
		url:      url,
		log:      log,
		dialer:   websocket.DefaultDialer,
		handlers: map[string]map[uint64]protocol.Handler{},
		done:     make(chan struct{}),
	}
}

// Connect dials the relay and starts the read and ping loops. The
// connection is closed when ctx is cancelled.
func (c *Conn) Connect(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.url)
	}
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.writeMu.Lock()
	c.ws = ws
	c.writeMu.Unlock()

	go c.readLoop(ws)
	go c.pingLoop(ws)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	c.log.Info().Str("url", c.url).Msg("[transport] connected")
	return nil
}

// writeJSON encodes v without HTML escaping so message bodies reach peers
// untouched.
func writeJSON(ws *websocket.Conn, v any) error {
	w, err := ws.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return w.Close()
}

func (c *Conn) Emit(event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.ws == nil {
		return ErrClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := writeJSON(c.ws, env); err != nil {
		return errors.Wrapf(err, "write %s", event)
	}
	return nil
}

type subscription struct {
	c     *Conn
	event string
	id    uint64
}

func (s subscription) Unsubscribe() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	delete(s.c.handlers[s.event], s.id)
}

func (c *Conn) On(event string, h protocol.Handler) protocol.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = map[uint64]protocol.Handler{}
	}
	id := c.nextSub
	c.nextSub++
	c.handlers[event][id] = h
	return subscription{c: c, event: event, id: id}
}

// ConnectionID is the id the relay assigned in its connect frame.
func (c *Conn) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Conn) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	hs := make([]protocol.Handler, 0, len(c.handlers[event]))
	for _, h := range c.handlers[event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	var err error
	defer func() {
		c.mu.Lock()
		c.id = ""
		c.mu.Unlock()
		c.dispatch(protocol.EventDisconnect, nil)
		c.finish(err)
	}()
	for {
		var payload []byte
		_, payload, err = ws.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("[transport] read")
			return
		}
		var env protocol.Envelope
		if jerr := json.Unmarshal(payload, &env); jerr != nil || env.Event == "" {
			c.log.Warn().Err(jerr).Msg("[transport] malformed frame dropped")
			continue
		}
		if env.Event == protocol.EventConnect {
			hello, derr := protocol.Decode[protocol.Connected](env.Data)
			if derr != nil {
				c.log.Warn().Err(derr).Msg("[transport] connect frame dropped")
				continue
			}
			c.mu.Lock()
			c.id = hello.ID
			c.mu.Unlock()
		}
		c.dispatch(env.Event, env.Data)
	}
}

func (c *Conn) pingLoop(ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) finish(err error) {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		if c.ws != nil {
			_ = c.ws.Close()
			c.ws = nil
		}
		c.writeMu.Unlock()
		c.err = err
		close(c.done)
	})
}

// Close sends a close frame and shuts the connection. The read loop then
// fires the disconnect handlers.
func (c *Conn) Close() {
	c.writeMu.Lock()
	ws := c.ws
	if ws != nil {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	c.writeMu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err is the read error that ended the connection, valid after Done.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}
