package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"narrative-server/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "narrative",
	Subsystem: "ws",
	Name:      "active_connections",
	Help:      "Number of open websocket connections.",
})

const sendBufferSize = 256

// Client - одно websocket соединение пользователя.
type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	send   chan []byte
}

// NewClient создает клиента с буферизованной очередью отправки.
func NewClient(userID uuid.UUID, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ConnectionManager хранит открытые соединения. У пользователя может быть
// несколько вкладок, поэтому на userID приходится набор клиентов.
type ConnectionManager struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewConnectionManager создает и запускает менеджер соединений.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("ConnectionManager"),
	}
	go m.run()
	return m
}

func (m *ConnectionManager) run() {
	m.logger.Info("ConnectionManager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			set, ok := m.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				m.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			m.mu.Unlock()
			activeConnections.Inc()
			m.logger.Info("Client registered", zap.String("userID", client.UserID.String()), zap.Int("userConnections", len(set)))

		case client := <-m.unregister:
			m.mu.Lock()
			if set, ok := m.clients[client.UserID]; ok {
				if _, exists := set[client]; exists {
					delete(set, client)
					close(client.send)
					activeConnections.Dec()
					m.logger.Info("Client unregistered", zap.String("userID", client.UserID.String()))
				}
				if len(set) == 0 {
					delete(m.clients, client.UserID)
				}
			}
			m.mu.Unlock()

		case <-m.done:
			m.mu.Lock()
			for userID, set := range m.clients {
				for client := range set {
					close(client.send)
					activeConnections.Dec()
				}
				delete(m.clients, userID)
			}
			m.mu.Unlock()
			m.logger.Info("ConnectionManager stopped")
			return
		}
	}
}

// RegisterClient регистрирует клиента. После Close ничего не делает.
func (m *ConnectionManager) RegisterClient(client *Client) {
	select {
	case m.register <- client:
	case <-m.done:
		_ = client.Conn.Close()
	}
}

// UnregisterClient удаляет клиента и закрывает его очередь отправки.
func (m *ConnectionManager) UnregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Close закрывает очереди всех клиентов; writePump отправит CloseMessage.
func (m *ConnectionManager) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

// ConnectionCount - число открытых соединений пользователя.
func (m *ConnectionManager) ConnectionCount(userID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

// SendToUser ставит сообщение в очередь всех соединений пользователя.
// Возвращает число соединений, принявших сообщение.
func (m *ConnectionManager) SendToUser(userID uuid.UUID, message []byte) int {
	// RLock удерживается на время отправки: close(send) идет под Lock
	m.mu.RLock()
	defer m.mu.RUnlock()

	delivered := 0
	for client := range m.clients[userID] {
		select {
		case client.send <- message:
			delivered++
		default:
			m.logger.Warn("Send queue is full, message dropped", zap.String("userID", userID.String()))
		}
	}
	if delivered == 0 {
		m.logger.Debug("User is offline, update not delivered", zap.String("userID", userID.String()))
	}
	return delivered
}

// PublishStoryUpdate отправляет событие истории во все вкладки владельца.
// Отсутствие соединений не ошибка.
func (m *ConnectionManager) PublishStoryUpdate(_ context.Context, update models.StoryUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события %s: %w", update.Type, err)
	}
	m.SendToUser(update.UserID, payload)
	return nil
}
