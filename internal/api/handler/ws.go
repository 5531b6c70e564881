package handler

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"omechat/backend/internal/chathub"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
)

// Close codes sent before the channel is handed to the engine.
const (
	CloseInvalidSession   = 4001
	CloseBanned           = 4003
	CloseAlreadyConnected = 4009
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket і реєструє його в хабі.
// The session is resolved after the upgrade so that a rejection can carry a
// close code the client understands.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("session_token")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	session, err := h.resolveSession(token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			logging.L().Error("resolve session", zap.Error(err))
		}
		reject(conn, CloseInvalidSession, "Invalid session")
		return
	}

	banned, err := h.Storage.IsSessionBanned(session.ID)
	if err != nil {
		logging.L().Error("ban check", zap.String("session_id", session.ID), zap.Error(err))
		reject(conn, websocket.CloseInternalServerErr, "Internal error")
		return
	}
	if banned {
		reject(conn, CloseBanned, "Banned")
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, session.ID, attributesOf(session), h.SendBufferSize)
	if err := h.Hub.Connect(client); err != nil {
		if errors.Is(err, chathub.ErrAlreadyRegistered) {
			reject(conn, CloseAlreadyConnected, "Session already connected")
			return
		}
		logging.L().Error("register client", zap.String("session_id", session.ID), zap.Error(err))
		reject(conn, websocket.CloseInternalServerErr, "Internal error")
		return
	}

	client.Run()
}

func attributesOf(s *models.UserSession) chathub.Attributes {
	return chathub.Attributes{
		Gender:          s.Gender,
		PreferredGender: s.PreferredGender,
		Interests:       []string(s.Interests),
	}
}

func reject(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		logging.L().Debug("write close frame", zap.Error(err))
	}
	conn.Close()
}
