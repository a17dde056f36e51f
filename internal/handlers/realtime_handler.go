package handlers

import (
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/tutordesk/backend/internal/middleware"
	"github.com/tutordesk/backend/internal/realtime"
)

// RealtimeHandler upgrades authenticated clients onto the change feed.
type RealtimeHandler struct {
	hub       *realtime.Hub
	jwtSecret string
}

func NewRealtimeHandler(hub *realtime.Hub, jwtSecret string) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwtSecret: jwtSecret}
}

// Upgrade checks the token before the handshake. Browsers cannot set headers on websockets,
// so the token query parameter is accepted here.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Cookies(middleware.SessionCookie))
	}
	if token == "" {
		if parts := strings.Split(strings.TrimSpace(c.Get("Authorization")), " "); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}

	session, err := middleware.ParseSession(token, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	middleware.WithSession(c, session)
	c.Locals("topics", c.Query("topics"))
	return c.Next()
}

func (h *RealtimeHandler) Serve(conn *websocket.Conn) {
	session, ok := conn.Locals(middleware.SessionKey).(*middleware.Session)
	if !ok || session == nil {
		_ = conn.Close()
		return
	}
	rawTopics, _ := conn.Locals("topics").(string)

	client := realtime.NewClient(h.hub, conn, session.UserID, session.Role, realtime.ParseTopics(rawTopics))
	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}
