package relay

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/pkg/errors"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

// Journal records every registered message in a pebble store keyed by an
// 8-byte big-endian sequence number. A nil *Journal records nothing.
type Journal struct {
	db   *pebble.DB
	mu   sync.Mutex
	next uint64
}

// OpenJournal opens the journal under dir. An empty dir disables it.
func OpenJournal(dir string) (*Journal, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir")
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	j := &Journal{db: db}
	it, err := db.NewIter(nil)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "scan journal")
	}
	if it.Last() && len(it.Key()) >= 8 {
		j.next = binary.BigEndian.Uint64(it.Key()[:8]) + 1
	}
	if err := it.Close(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "scan journal")
	}
	return j, nil
}

func (j *Journal) Append(m protocol.Message) error {
	if j == nil {
		return nil
	}
	val, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, j.next)
	if err := j.db.Set(key, val, pebble.Sync); err != nil {
		return errors.Wrap(err, "append message")
	}
	j.next++
	return nil
}

// Recent returns up to limit of the newest messages, oldest first. A limit
// of zero or less returns everything.
func (j *Journal) Recent(limit int) ([]protocol.Message, error) {
	if j == nil {
		return nil, nil
	}
	it, err := j.db.NewIter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "read journal")
	}
	defer func() { _ = it.Close() }()

	var out []protocol.Message
	for valid := it.Last(); valid; valid = it.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var m protocol.Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
