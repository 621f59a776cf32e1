package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrInvalidPayload is wrapped by every decoding or validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// Connected is the payload of the relay's connect frame.
type Connected struct {
	ID string `json:"id"`
}

func (c *Connected) Validate() error {
	if c.ID == "" {
		return errors.Wrap(ErrInvalidPayload, "connect without id")
	}
	return nil
}

// Registered acknowledges a message and carries its permanent id.
type Registered struct {
	Room  string `json:"room"`
	OldID string `json:"old_id"`
	UUID  string `json:"uuid"`
}

func (r *Registered) Validate() error {
	switch {
	case r.Room == "":
		return errors.Wrap(ErrInvalidPayload, "registration without room")
	case r.OldID == "":
		return errors.Wrap(ErrInvalidPayload, "registration without old_id")
	case r.UUID == "":
		return errors.Wrap(ErrInvalidPayload, "registration without uuid")
	}
	return nil
}

// Presence announces a peer joining or leaving.
type Presence struct {
	User     User   `json:"user"`
	SocketID string `json:"socketId"`
}

func (p *Presence) Validate() error {
	if p.SocketID == "" {
		return errors.Wrap(ErrInvalidPayload, "presence without socketId")
	}
	return nil
}

// UsersOnline maps every connected connection id to its user, the receiver
// included.
type UsersOnline map[string]User

func (u *UsersOnline) Validate() error {
	if *u == nil {
		return errors.Wrap(ErrInvalidPayload, "null users_online")
	}
	return nil
}

// Typing is the payload of typing and reset_typing.
type Typing struct {
	Sender string `json:"sender"`
	Room   string `json:"room"`
}

func (t *Typing) Validate() error {
	if t.Sender == "" || t.Room == "" {
		return errors.Wrap(ErrInvalidPayload, "typing without sender or room")
	}
	return nil
}

// Validator is implemented by every payload type above.
type Validator interface {
	Validate() error
}

// Decode unmarshals data into v and validates it.
func Decode[T any, P interface {
	*T
	Validator
}](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errors.Wrap(ErrInvalidPayload, "empty payload")
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Wrapf(ErrInvalidPayload, "decode: %v", err)
	}
	if err := P(&v).Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// DecodeName decodes the bare string payload of change_username.
func DecodeName(data json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return "", errors.Wrapf(ErrInvalidPayload, "decode name: %v", err)
	}
	return name, nil
}
