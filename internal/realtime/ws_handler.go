package realtime

import (
	"net/http"
	"strings"
	"time"

	"narrative-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время ожидания следующего pong от клиента.
	pongWait = 60 * time.Second
	// Период пингов. Должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Клиент ничего не присылает, кроме control-фреймов.
	maxMessageSize = 512
)

// WebSocketHandler поднимает websocket соединения для push-уведомлений об историях.
type WebSocketHandler struct {
	manager  *ConnectionManager
	verifier middleware.TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler создает обработчик. Пустой allowedOrigins разрешает любой Origin.
func NewWebSocketHandler(manager *ConnectionManager, verifier middleware.TokenVerifier, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  manager,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.Named("WebSocketHandler"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWS проверяет токен (query "token" или Bearer) и регистрирует соединение.
func (h *WebSocketHandler) ServeWS(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString, _ = middleware.ExtractBearerToken(c.GetHeader("Authorization"))
	}
	if tokenString == "" {
		h.logger.Warn("Missing websocket token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: Missing token"})
		return
	}

	userID, _, err := h.verifier(c.Request.Context(), tokenString)
	if err != nil {
		h.logger.Warn("Invalid websocket token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: Invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Error("Failed to upgrade connection", zap.String("userID", userID.String()), zap.Error(err))
		return
	}
	h.logger.Info("WebSocket connection established", zap.String("userID", userID.String()))

	client := NewClient(userID, conn)
	h.manager.RegisterClient(client)

	log := h.logger.With(zap.String("userID", userID.String()))
	go client.writePump(log)
	go client.readPump(h.manager, log)
}

// readPump читает control-фреймы и обнаруживает отключение клиента.
func (c *Client) readPump(manager *ConnectionManager, logger *zap.Logger) {
	defer func() {
		manager.UnregisterClient(c)
		_ = c.Conn.Close()
		logger.Debug("readPump finished")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			} else {
				logger.Info("WebSocket connection closed")
			}
			return
		}
		logger.Debug("Unexpected client message ignored", zap.Int("size", len(message)))
	}
}

// writePump пишет сообщения из очереди в соединение. Накопившиеся сообщения
// уходят одним фреймом через перевод строки.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		logger.Debug("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				logger.Error("Failed to get next writer", zap.Error(err))
				return
			}
			if _, err := w.Write(message); err != nil {
				logger.Error("Failed to write message", zap.Error(err))
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				if _, err := w.Write([]byte("\n")); err != nil {
					_ = w.Close()
					return
				}
				if _, err := w.Write(<-c.send); err != nil {
					logger.Error("Failed to write queued message", zap.Error(err))
					_ = w.Close()
					return
				}
			}

			if err := w.Close(); err != nil {
				logger.Error("Failed to close writer", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
