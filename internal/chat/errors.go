package chat

import "github.com/pkg/errors"

var (
	// ErrMissingUsername is returned when a session is started without a
	// user name. Callers should send the user back to pick one.
	ErrMissingUsername = errors.New("username is required")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNotConnected    = errors.New("transport has no connection id yet")
	ErrUnknownRoom     = errors.New("unknown room")
)
