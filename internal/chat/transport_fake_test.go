package chat

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

type emission struct {
	event   string
	payload any
}

type subFunc func()

func (f subFunc) Unsubscribe() { f() }

// fakeTransport records emissions and lets tests play inbound events.
type fakeTransport struct {
	mu       sync.Mutex
	id       string
	handlers map[string]map[int]protocol.Handler
	next     int
	emitted  []emission
	failWith error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string]map[int]protocol.Handler{}}
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.emitted = append(f.emitted, emission{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event string, h protocol.Handler) protocol.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[event] == nil {
		f.handlers[event] = map[int]protocol.Handler{}
	}
	id := f.next
	f.next++
	f.handlers[event][id] = h
	return subFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[event], id)
	})
}

func (f *fakeTransport) ConnectionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *fakeTransport) deliverRaw(event string, data json.RawMessage) {
	f.mu.Lock()
	hs := make([]protocol.Handler, 0, len(f.handlers[event]))
	for _, h := range f.handlers[event] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func (f *fakeTransport) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		data = b
	}
	f.deliverRaw(event, data)
}

func (f *fakeTransport) connect(t *testing.T, id string) {
	f.mu.Lock()
	f.id = id
	f.mu.Unlock()
	f.deliver(t, protocol.EventConnect, nil)
}

// sent returns the payloads emitted for event, in order.
func (f *fakeTransport) sent(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.emitted))
	for _, e := range f.emitted {
		out = append(out, e.event)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = nil
}

// newConnectedSession returns a session for Alice connected as "A" who sees
// Bob ("B") and Carol ("C") online.
func newConnectedSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	s, err := NewSession(ft, "Alice", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ft.connect(t, "A")
	ft.deliver(t, protocol.EventUsersOnline, protocol.UsersOnline{
		"A": {Name: "Alice"},
		"B": {Name: "Bob"},
		"C": {Name: "Carol"},
	})
	ft.reset()
	return s, ft
}

func peerMessage(uuid, from, room, content string) protocol.Message {
	return protocol.Message{
		UUID:      uuid,
		User:      protocol.User{ID: from, Name: from},
		Sender:    from,
		Recipient: "A",
		Room:      room,
		Content:   content,
		State:     protocol.ReadyToSend,
	}
}
