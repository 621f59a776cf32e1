package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/chatsync/internal/protocol"
	"github.com/pelusa-v/chatsync/internal/relay"
)

func newApp(t *testing.T, j *relay.Journal) *fiber.App {
	t.Helper()
	hub := relay.NewHub(j, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Start(ctx)

	app := fiber.New(fiber.Config{Views: Views()})
	New(hub).Mount(app)
	return app
}

func TestHealth(t *testing.T) {
	app := newApp(t, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSocketRequiresUpgrade(t *testing.T) {
	app := newApp(t, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestUsersEmpty(t *testing.T) {
	app := newApp(t, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/users?exclude=nobody", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var users []protocol.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	assert.Empty(t, users)
}

func TestMessages(t *testing.T) {
	j, err := relay.OpenJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.Append(protocol.Message{UUID: "u1", Room: protocol.MainRoom, Content: "one"}))
	require.NoError(t, j.Append(protocol.Message{UUID: "u2", Room: protocol.MainRoom, Content: "two"}))

	app := newApp(t, j)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/messages?limit=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var msgs []protocol.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Content)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/messages?limit=0", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMessagesWithoutJournal(t *testing.T) {
	app := newApp(t, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/messages", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestIndex(t *testing.T) {
	app := newApp(t, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chatsync relay")
	assert.Contains(t, string(body), "nobody yet")
}
