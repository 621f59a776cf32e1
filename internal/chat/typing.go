package chat

import (
	"strings"

	"github.com/aquilax/truncate"
	"github.com/elliotchance/orderedmap"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// typing holds the local composing edge and the indicators of peers typing
// in the current room, in the order they started.
type typing struct {
	composing  bool
	indicators *orderedmap.OrderedMap // connection id -> display line
}

func newTyping() *typing {
	return &typing{indicators: orderedmap.NewOrderedMap()}
}

func (t *typing) set(sender, line string) { t.indicators.Set(sender, line) }

func (t *typing) remove(sender string) { t.indicators.Delete(sender) }

func (t *typing) clear() { t.indicators = orderedmap.NewOrderedMap() }

func (t *typing) status() string {
	lines := make([]string, 0, t.indicators.Len())
	for el := t.indicators.Front(); el != nil; el = el.Next() {
		lines = append(lines, el.Value.(string))
	}
	return strings.Join(lines, " ")
}

// OnTyping takes the composer's content after every edit. typing goes out
// once when the content turns non-empty, reset_typing once when it turns
// empty again.
func (s *Session) OnTyping(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := strings.TrimSpace(content) == ""
	switch {
	case !empty && !s.typing.composing:
		local := s.transport.ConnectionID()
		if local == "" {
			return ErrNotConnected
		}
		if err := s.emit(protocol.EventTyping, protocol.Typing{Sender: local, Room: s.current}); err != nil {
			return err
		}
		s.typing.composing = true
	case empty && s.typing.composing:
		return s.resetTyping()
	}
	return nil
}

// resetTyping tells the current room we stopped typing. Send calls it
// whatever the composing state.
func (s *Session) resetTyping() error {
	s.typing.composing = false
	local := s.transport.ConnectionID()
	if local == "" {
		return ErrNotConnected
	}
	return s.emit(protocol.EventResetTyping, protocol.Typing{Sender: local, Room: s.current})
}

// inScope reports whether a relayed typing signal concerns the room on
// screen: the broadcast room by name, a private room by its peer.
func (s *Session) inScope(t protocol.Typing) bool {
	return t.Room == s.current || t.Sender == s.current
}

func (s *Session) onTyping(t protocol.Typing) {
	if !s.inScope(t) {
		return
	}
	u, ok := s.peers[t.Sender]
	if !ok {
		s.log.Debug().Str("sender", t.Sender).Msg("[chat] typing from unknown peer ignored")
		return
	}
	name := truncate.Truncate(u.Name, 24, "...", truncate.PositionEnd)
	s.typing.set(t.Sender, name+" is typing...")
}

func (s *Session) onResetTyping(t protocol.Typing) {
	if !s.inScope(t) {
		return
	}
	s.typing.remove(t.Sender)
}

// TypingStatus joins the indicators of everyone typing in the current room.
func (s *Session) TypingStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing.status()
}
