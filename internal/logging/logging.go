// Package logging configures zerolog for the chatsync commands and keeps the
// tail of the log in memory.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/armon/circbuf"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Ring keeps the last Size bytes written to it.
type Ring struct {
	mu sync.Mutex
	cb *circbuf.Buffer
}

func NewRing(size int) (*Ring, error) {
	cb, err := circbuf.NewBuffer(int64(size))
	if err != nil {
		return nil, errors.Wrap(err, "could not create new circular buffer")
	}
	return &Ring{cb: cb}, nil
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cb.Write(p)
}

// Bytes returns a copy of the buffered log.
func (r *Ring) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.cb.Bytes()...)
}

func (r *Ring) Size() int {
	return int(r.cb.Size())
}

// Setup points the global logger at a console writer on out and, unless
// bufSize is zero, at a Ring of bufSize bytes, which it returns.
func Setup(level string, bufSize int, out io.Writer) (*Ring, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if out == nil {
		out = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}

	var ring *Ring
	w := io.Writer(console)
	if bufSize > 0 {
		if ring, err = NewRing(bufSize); err != nil {
			return nil, err
		}
		w = zerolog.MultiLevelWriter(console, ring)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	log.Debug().Str("level", lvl.String()).Int("buffer", bufSize).Msg("[LOG] logging configured")
	return ring, nil
}
