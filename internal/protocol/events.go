// Package protocol defines the event envelope exchanged between the chat
// synchronizer and the relay, the payload shapes of every event, and the
// collaborator types a transport has to provide.
package protocol

import "encoding/json"

// MainRoom is the broadcast room every connected user shares.
const MainRoom = "main-room"

// Event names.
const (
	EventConnect           = "connect"
	EventDisconnect        = "disconnect"
	EventMessage           = "message"
	EventMessageRegistered = "message_registered"
	EventClientReceived    = "client_received"
	EventClientRead        = "client_read"
	EventTyping            = "typing"
	EventResetTyping       = "reset_typing"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventUsersOnline       = "users_online"
	EventChangeUsername    = "change_username"
)

// Envelope is one websocket frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload into an Envelope for event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, err
	}
	env.Data = data
	return env, nil
}

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Subscription is returned by a transport's On and detaches the handler.
type Subscription interface {
	Unsubscribe()
}
