package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Messijah/PedagogiskDialog/internal/services"
)

const progressSessionKey = "progress_session_id"

// AuthorizeProgress checks that the caller owns the session before the
// connection is upgraded.
func AuthorizeProgress(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		userID, sessionID, err := caller(c)
		if err != nil {
			return err
		}
		if _, err := svc.Sessions.Get(c.Context(), userID, sessionID); err != nil {
			return err
		}
		c.Locals(progressSessionKey, sessionID)
		return c.Next()
	}
}

// StreamProgress forwards transcription and generation progress of one
// session as JSON frames until either side goes away.
func StreamProgress(svc *services.Services, logger *logrus.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sessionID, ok := conn.Locals(progressSessionKey).(uuid.UUID)
		if !ok {
			return
		}
		events, cancel := svc.Progress.Subscribe(sessionID)
		defer cancel()

		log := logger.WithField("session_id", sessionID)
		log.Debug("Progress subscriber connected")
		defer log.Debug("Progress subscriber disconnected")

		// The client sends nothing; reading only detects the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	})
}
