// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/service"
	"github.com/fallrisk/super-serial/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocketHandler streams link events to WebSocket clients and accepts
// writes from them.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	terminal    *service.TerminalService
	eventBus    *EventBus
	logger      *utils.ServiceLogger

	events    <-chan Event
	closeOnce sync.Once
	forwarded chan struct{}
}

// NewWebSocketHandler creates a new WebSocket handler and starts forwarding
// bus events to its clients. allowedOrigins of "*" or none accepts any origin.
func NewWebSocketHandler(
	terminal *service.TerminalService,
	eventBus *EventBus,
	allowedOrigins []string,
	logger *zap.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections: NewConnectionManager(),
		terminal:    terminal,
		eventBus:    eventBus,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
		events:      eventBus.Subscribe(EventAll),
		forwarded:   make(chan struct{}),
	}

	go handler.forwardEvents()

	return handler
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Close stops forwarding events
func (h *WebSocketHandler) Close() {
	h.closeOnce.Do(func() {
		h.eventBus.Unsubscribe(h.events)
		<-h.forwarded
	})
}

func (h *WebSocketHandler) forwardEvents() {
	defer close(h.forwarded)

	for event := range h.events {
		message, err := json.Marshal(&WebSocketMessage{
			Type:      event.Type,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		})
		if err != nil {
			h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
			continue
		}

		if dropped := h.connections.Broadcast(message); dropped > 0 {
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("event_type", event.Type),
				zap.Int("dropped", dropped),
			)
		}
	}
}

// HandleEventConnection upgrades to a WebSocket that receives every link event
// @Summary Link event stream
// @Description WebSocket stream of link.opened, link.closed, link.data and link.error events
// @Tags WebSocket
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "status",
		Data:      h.terminal.Status(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("Event WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "invalid message", nil)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "write":
		text, ok := message.Data.(string)
		if !ok {
			h.sendError(client, "write data must be a string", nil)
			return
		}
		n, err := h.terminal.Write([]byte(text))
		if err != nil {
			h.sendError(client, "write failed", err)
			return
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      "write_ack",
			Data:      map[string]interface{}{"written": n},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})

	case "status":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "status",
			Data:      h.terminal.Status(),
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})

	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})

	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, "unknown message type: "+message.Type, nil)
	}
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	// only called before handleClientRead unregisters the client
	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, message string, err error) {
	data := map[string]interface{}{"error": message}
	if err != nil {
		data["kind"] = linkerr.KindOf(err).String()
		data["details"] = err.Error()
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      data,
		Timestamp: time.Now(),
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
