package view

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// HubConfig holds configuration for browser websocket connections
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultHubConfig returns default browser connection configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      16,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Hub pushes every new BoardView to connected browsers.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[*browserConn]bool

	broadcastCh chan BoardView
}

type browserConn struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	connectedAt time.Time
	closeOnce   sync.Once
}

// NewHub creates a hub. Start must be running for broadcasts to be delivered.
func NewHub(config HubConfig) *Hub {
	defaults := DefaultHubConfig()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		connections: make(map[*browserConn]bool),
		broadcastCh: make(chan BoardView, 1),
	}
}

// Start delivers broadcasts until ctx is cancelled, then closes every connection.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("browser hub started")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info().Msg("browser hub shutting down")
			return
		case bv := <-h.broadcastCh:
			h.handleBroadcast(bv)
		}
	}
}

// Broadcast queues bv for every browser. An undelivered older view is replaced.
func (h *Hub) Broadcast(bv BoardView) {
	select {
	case <-h.broadcastCh:
	default:
	}
	select {
	case h.broadcastCh <- bv:
	default:
		log.Warn().Msg("broadcast channel full, dropping board view")
	}
}

// Upgrade upgrades r to a websocket and sends initial before any broadcast.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, initial BoardView) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	data, err := json.Marshal(initial)
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal initial view: %w", err)
	}

	bc := &browserConn{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, h.config.SendBuffer),
		hub:         h,
		connectedAt: time.Now(),
	}
	bc.send <- data
	h.register(bc)

	go bc.writePump()
	go bc.readPump()

	log.Info().Str("connection_id", bc.id).Msg("browser connected")
	return nil
}

// Count returns the number of connected browsers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) register(bc *browserConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[bc] = true
}

func (h *Hub) unregister(bc *browserConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[bc]; !ok {
		return
	}
	delete(h.connections, bc)
	close(bc.send)
	log.Info().Str("connection_id", bc.id).Msg("browser disconnected")
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	conns := make([]*browserConn, 0, len(h.connections))
	for bc := range h.connections {
		conns = append(conns, bc)
	}
	h.mu.RUnlock()

	for _, bc := range conns {
		h.unregister(bc)
	}
}

func (h *Hub) handleBroadcast(bv BoardView) {
	data, err := json.Marshal(bv)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal board view for broadcast")
		return
	}

	// Sends happen under the read lock so unregister cannot close a send
	// channel mid-broadcast.
	var slow []*browserConn
	h.mu.RLock()
	delivered := len(h.connections)
	for bc := range h.connections {
		select {
		case bc.send <- data:
		default:
			slow = append(slow, bc)
		}
	}
	h.mu.RUnlock()

	for _, bc := range slow {
		log.Warn().Str("connection_id", bc.id).Msg("browser send buffer full, closing connection")
		h.unregister(bc)
	}

	log.Debug().Int("connections", delivered-len(slow)).Msg("board view broadcasted")
}

func (bc *browserConn) close() {
	bc.closeOnce.Do(func() { bc.conn.Close() })
}

func (bc *browserConn) writePump() {
	ticker := time.NewTicker(bc.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		bc.close()
		bc.hub.unregister(bc)
	}()

	for {
		select {
		case message, ok := <-bc.send:
			bc.conn.SetWriteDeadline(time.Now().Add(bc.hub.config.WriteTimeout))
			if !ok {
				bc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := bc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", bc.id).Msg("failed to write board view")
				return
			}

		case <-ticker.C:
			bc.conn.SetWriteDeadline(time.Now().Add(bc.hub.config.WriteTimeout))
			if err := bc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", bc.id).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump only keeps the read deadline alive; browsers send gestures over HTTP.
func (bc *browserConn) readPump() {
	defer func() {
		bc.hub.unregister(bc)
		bc.close()
	}()

	bc.conn.SetReadLimit(bc.hub.config.MaxMessageSize)
	bc.conn.SetReadDeadline(time.Now().Add(bc.hub.config.ReadTimeout))
	bc.conn.SetPongHandler(func(string) error {
		bc.conn.SetReadDeadline(time.Now().Add(bc.hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := bc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", bc.id).Msg("unexpected browser close error")
			}
			return
		}
		bc.conn.SetReadDeadline(time.Now().Add(bc.hub.config.ReadTimeout))
	}
}
