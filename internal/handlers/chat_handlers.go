package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/pelusa-v/chatsync/internal/relay"
)

const (
	defaultHistory = 50
	maxHistory     = 500
)

// Relay exposes a relay hub over fiber.
type Relay struct {
	hub *relay.Hub
}

func New(hub *relay.Hub) *Relay {
	return &Relay{hub: hub}
}

// Mount registers the websocket endpoint and the HTTP API on app. app must
// be created with Views.
func (r *Relay) Mount(app *fiber.App) {
	app.Get("/", r.IndexHandler)
	app.Get("/health", r.HealthHandler)
	app.Use("/ws", UpgradeRequired)
	app.Get("/ws", websocket.New(r.SocketHandler))
	app.Get("/api/users", r.UsersHandler)       // ?exclude=nameOrId
	app.Get("/api/messages", r.MessagesHandler) // ?limit=
}

// UpgradeRequired rejects plain HTTP requests to the websocket endpoint.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// SocketHandler GET /ws
func (r *Relay) SocketHandler(c *websocket.Conn) {
	p := r.hub.NewPeer(c)
	r.hub.Register(p)
	written := make(chan struct{})
	go func() {
		p.WritePump()
		close(written)
	}()
	p.ReadPump()
	select {
	case <-written:
	case <-r.hub.Done():
	}
}

// IndexHandler GET /
func (r *Relay) IndexHandler(c *fiber.Ctx) error {
	return c.Render("views/index", fiber.Map{"Users": r.hub.ListUsers("")})
}

// HealthHandler GET /health
func (r *Relay) HealthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// UsersHandler GET /api/users?exclude=nameOrId
func (r *Relay) UsersHandler(c *fiber.Ctx) error {
	return c.JSON(r.hub.ListUsers(c.Query("exclude")))
}

// MessagesHandler GET /api/messages?limit=
func (r *Relay) MessagesHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistory)
	if limit <= 0 || limit > maxHistory {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit out of range"})
	}
	msgs, err := r.hub.Recent(limit)
	if err != nil {
		return err
	}
	if msgs == nil {
		return c.JSON([]any{})
	}
	return c.JSON(msgs)
}
