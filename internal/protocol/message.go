package protocol

import (
	"strings"

	"github.com/pkg/errors"
)

// User is a chat participant. ID is the transport connection id and changes
// on every reconnect.
type User struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// DeliveryState is the lifecycle of a message from creation to read receipt.
type DeliveryState int

const (
	StateNone DeliveryState = iota // system notices carry no delivery state
	ReadyToSend
	ClientSent
	ServerReceived
	ClientReceived
	ClientRead
)

var stateNames = [...]string{
	StateNone:      "",
	ReadyToSend:    "READY_TO_SEND",
	ClientSent:     "CLIENT_SENT",
	ServerReceived: "SERVER_RECEIVED",
	ClientReceived: "CLIENT_RECEIVED",
	ClientRead:     "CLIENT_READ",
}

func (s DeliveryState) String() string {
	if s < StateNone || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

func (s DeliveryState) MarshalText() ([]byte, error) {
	if s < StateNone || int(s) >= len(stateNames) {
		return nil, errors.Errorf("invalid delivery state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

func (s *DeliveryState) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for i, n := range stateNames {
		if n == name {
			*s = DeliveryState(i)
			return nil
		}
	}
	return errors.Errorf("unknown delivery state %q", string(text))
}

// Message is the unit the synchronizer stores and the relay routes.
// Sender and Recipient are empty for system notices.
type Message struct {
	UUID      string        `json:"uuid"`
	User      User          `json:"user"`
	Sender    string        `json:"sender,omitempty"`    // connection id of the author
	Recipient string        `json:"recipient,omitempty"` // room the author addressed
	Room      string        `json:"room"`                // room the message is filed under
	Content   string        `json:"content"`
	State     DeliveryState `json:"state"`

	// Local marks the viewer's own outbound copy; never sent on the wire.
	Local bool `json:"-"`
}

// Advance moves the message forward to next. It reports false and leaves the
// state untouched when next is not ahead of the current state.
func (m *Message) Advance(next DeliveryState) bool {
	if next <= m.State {
		return false
	}
	m.State = next
	return true
}

// Private reports whether the message belongs to a two-party room.
func (m *Message) Private() bool {
	return m.Room != MainRoom
}

func (m *Message) Validate() error {
	if m.UUID == "" {
		return errors.Wrap(ErrInvalidPayload, "message without uuid")
	}
	if m.Room == "" {
		return errors.Wrap(ErrInvalidPayload, "message without room")
	}
	return nil
}
