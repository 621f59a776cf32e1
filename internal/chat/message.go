package chat

import "github.com/pelusa-v/chatsync/internal/protocol"

type RoomKind string

const (
	RoomPrivate   RoomKind = "private"
	RoomBroadcast RoomKind = "broadcast"
)

// RoomInfo is one entry of the room list shown next to the conversation.
type RoomInfo struct {
	ID       string   `json:"id"` // MainRoom or the peer's connection id
	Kind     RoomKind `json:"kind"`
	Title    string   `json:"title"`
	Pending  int      `json:"pending"` // messages not yet looked at
	Archived int      `json:"archived"`
	Current  bool     `json:"current"`
}

// Status is the state of the session the UI polls for its header bar.
type Status struct {
	User         protocol.User `json:"user"`
	ConnectionID string        `json:"connection_id"`
	CurrentRoom  string        `json:"current_room"`
	RoomTitle    string        `json:"room_title"`
	Online       int           `json:"online"`
	Typing       string        `json:"typing,omitempty"`
}
