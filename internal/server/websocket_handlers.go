package server

import (
	"log"

	"reelshare/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade rejects non-upgrade requests and requires a userId.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	userID := c.Query("userId")
	if userID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("userId is required"))
	}
	c.Locals("wsUserID", userID)
	return c.Next()
}

// WebSocketNotificationsHandler streams a user's notification events.
func (s *Server) WebSocketNotificationsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("wsUserID").(string)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket: Failed to register user %s: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		log.Printf("WebSocket: User %s connected", userID)

		go client.WritePump()
		client.ReadPump()
	})
}
