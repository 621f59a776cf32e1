package relay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/chatsync/internal/protocol"
)

func TestJournalReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(protocol.Message{UUID: fmt.Sprint(i), Room: protocol.MainRoom}))
	}
	require.NoError(t, j.Close())

	j, err = OpenJournal(dir)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.Append(protocol.Message{UUID: "3", Room: protocol.MainRoom}))

	all, err := j.Recent(0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, m := range all {
		assert.Equal(t, fmt.Sprint(i), m.UUID)
	}
}

func TestNilJournal(t *testing.T) {
	j, err := OpenJournal("")
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.NoError(t, j.Append(protocol.Message{UUID: "x"}))
	msgs, err := j.Recent(10)
	assert.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NoError(t, j.Close())
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Bob", SanitizeName("<b>Bob</b>"))
	assert.Equal(t, "anon", SanitizeName("  "))
	assert.Equal(t, "anon", SanitizeName("<script></script>"))
	assert.LessOrEqual(t, len([]rune(SanitizeName("abcdefghijklmnopqrstuvwxyz0123"))), maxNameLen)
}
