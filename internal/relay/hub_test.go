package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

func startHub(t *testing.T, j *Journal) *Hub {
	t.Helper()
	h := NewHub(j, zerolog.Nop())
	var n atomic.Int64
	h.newID = func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Start(ctx)
	return h
}

func recv(t *testing.T, p *Peer) protocol.Envelope {
	t.Helper()
	select {
	case data := <-p.Send:
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("peer %s received nothing", p.ID)
		return protocol.Envelope{}
	}
}

// recvEvent skips frames until event arrives.
func recvEvent(t *testing.T, p *Peer, event string) protocol.Envelope {
	t.Helper()
	for {
		if env := recv(t, p); env.Event == event {
			return env
		}
	}
}

func assertQuiet(t *testing.T, p *Peer) {
	t.Helper()
	select {
	case data := <-p.Send:
		t.Fatalf("unexpected frame for %s: %s", p.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func emit(t *testing.T, h *Hub, p *Peer, event string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(t, err)
	h.inbound <- frame{peer: p, env: env}
}

func decode[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// join connects a peer, announces it and drains the presence frames.
func join(t *testing.T, h *Hub, name string, others ...*Peer) *Peer {
	t.Helper()
	p := h.NewPeer(nil)
	h.Register(p)
	hello := recv(t, p)
	require.Equal(t, protocol.EventConnect, hello.Event)
	assert.Equal(t, p.ID, decode[protocol.Connected](t, hello).ID)

	emit(t, h, p, protocol.EventUserJoined, protocol.User{Name: name})
	recvEvent(t, p, protocol.EventUsersOnline)
	for _, o := range others {
		joined := recvEvent(t, o, protocol.EventUserJoined)
		assert.Equal(t, p.ID, decode[protocol.Presence](t, joined).SocketID)
		recvEvent(t, o, protocol.EventUsersOnline)
	}
	return p
}

func TestHubPresence(t *testing.T) {
	h := startHub(t, nil)
	alice := join(t, h, "Alice")
	bob := join(t, h, "<b>Bob</b>", alice)

	users := h.ListUsers("")
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, "Bob", users[1].Name)
	assert.Len(t, h.ListUsers("Alice"), 1)
	assert.Len(t, h.ListUsers(bob.ID), 1)

	emit(t, h, bob, protocol.EventChangeUsername, "Robert")
	online := decode[protocol.UsersOnline](t, recvEvent(t, alice, protocol.EventUsersOnline))
	assert.Equal(t, "Robert", online[bob.ID].Name)

	h.Unregister(bob)
	left := decode[protocol.Presence](t, recvEvent(t, alice, protocol.EventUserLeft))
	assert.Equal(t, bob.ID, left.SocketID)
	assert.Equal(t, "Robert", left.User.Name)
	online = decode[protocol.UsersOnline](t, recvEvent(t, alice, protocol.EventUsersOnline))
	assert.Len(t, online, 1)
	for range bob.Send {
	}
}

func TestHubBroadcastMessage(t *testing.T) {
	h := startHub(t, nil)
	alice := join(t, h, "Alice")
	bob := join(t, h, "Bob", alice)
	carol := join(t, h, "Carol", alice, bob)

	emit(t, h, alice, protocol.EventMessage, protocol.Message{
		UUID: "0", Room: protocol.MainRoom, Recipient: protocol.MainRoom, Content: "hi all", State: protocol.ReadyToSend,
	})

	reg := decode[protocol.Registered](t, recv(t, alice))
	assert.Equal(t, protocol.MainRoom, reg.Room)
	assert.Equal(t, "0", reg.OldID)
	assert.NotEmpty(t, reg.UUID)

	for _, p := range []*Peer{bob, carol} {
		m := decode[protocol.Message](t, recvEvent(t, p, protocol.EventMessage))
		assert.Equal(t, reg.UUID, m.UUID)
		assert.Equal(t, alice.ID, m.Sender)
		assert.Equal(t, "Alice", m.User.Name)
		assert.Equal(t, protocol.ServerReceived, m.State)
	}
	assertQuiet(t, alice)
}

func TestHubPrivateMessageAndReceipts(t *testing.T) {
	h := startHub(t, nil)
	alice := join(t, h, "Alice")
	bob := join(t, h, "Bob", alice)
	carol := join(t, h, "Carol", alice, bob)

	emit(t, h, alice, protocol.EventMessage, protocol.Message{
		UUID: "0", Room: alice.ID, Recipient: bob.ID, Content: "psst", State: protocol.ReadyToSend,
	})
	reg := decode[protocol.Registered](t, recv(t, alice))
	assert.Equal(t, alice.ID, reg.Room)

	m := decode[protocol.Message](t, recv(t, bob))
	assert.Equal(t, alice.ID, m.Room)
	assert.Equal(t, reg.UUID, m.UUID)
	assertQuiet(t, carol)

	emit(t, h, bob, protocol.EventClientReceived, m)
	ack := recv(t, alice)
	assert.Equal(t, protocol.EventClientReceived, ack.Event)
	assert.Equal(t, reg.UUID, decode[protocol.Message](t, ack).UUID)

	emit(t, h, bob, protocol.EventClientRead, m)
	assert.Equal(t, protocol.EventClientRead, recv(t, alice).Event)
	assertQuiet(t, bob)
}

func TestHubDropsMessageToDepartedPeer(t *testing.T) {
	h := startHub(t, nil)
	alice := join(t, h, "Alice")

	emit(t, h, alice, protocol.EventMessage, protocol.Message{UUID: "0", Room: alice.ID, Recipient: "gone"})
	emit(t, h, alice, protocol.EventMessage, protocol.Message{Content: "no uuid"})
	assertQuiet(t, alice)
}

func TestHubTypingRouting(t *testing.T) {
	h := startHub(t, nil)
	alice := join(t, h, "Alice")
	bob := join(t, h, "Bob", alice)
	carol := join(t, h, "Carol", alice, bob)

	// The sender is always the connection the signal came from.
	emit(t, h, alice, protocol.EventTyping, protocol.Typing{Sender: "spoofed", Room: bob.ID})
	got := decode[protocol.Typing](t, recv(t, bob))
	assert.Equal(t, protocol.Typing{Sender: alice.ID, Room: bob.ID}, got)
	assertQuiet(t, carol)

	emit(t, h, alice, protocol.EventResetTyping, protocol.Typing{Sender: alice.ID, Room: protocol.MainRoom})
	assert.Equal(t, protocol.EventResetTyping, recv(t, bob).Event)
	assert.Equal(t, protocol.EventResetTyping, recv(t, carol).Event)
	assertQuiet(t, alice)
}

func TestHubJournalsMessages(t *testing.T) {
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	h := startHub(t, j)
	alice := join(t, h, "Alice")
	for i := 0; i < 3; i++ {
		emit(t, h, alice, protocol.EventMessage, protocol.Message{
			UUID: fmt.Sprint(i), Room: protocol.MainRoom, Content: fmt.Sprintf("line %d", i),
		})
		recvEvent(t, alice, protocol.EventMessageRegistered)
	}

	recent, err := h.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "line 1", recent[0].Content)
	assert.Equal(t, "line 2", recent[1].Content)
}
