// Package transport provides realtime.Channel implementations.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

// ErrAlreadyJoined is returned when Join is called twice on one channel.
var ErrAlreadyJoined = errors.New("channel already joined")

// WebSocketConfig holds configuration for the websocket channel
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	FrameBuffer      int
}

// DefaultWebSocketConfig returns default websocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		FrameBuffer:      64,
	}
}

// SocketURL derives the websocket URL from the authority base URL and socket path.
func SocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse authority URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported authority URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}

// WebSocketChannel is a realtime channel over a single websocket connection.
type WebSocketChannel struct {
	config WebSocketConfig
	dialer *websocket.Dialer

	frames  chan []byte
	closing chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketChannel creates an unconnected channel. Join dials.
func NewWebSocketChannel(config WebSocketConfig) *WebSocketChannel {
	defaults := DefaultWebSocketConfig()
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
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
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = defaults.FrameBuffer
	}

	return &WebSocketChannel{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		frames:  make(chan []byte, config.FrameBuffer),
		closing: make(chan struct{}),
	}
}

// Join dials the socket and sends the join_game frame.
func (c *WebSocketChannel) Join(ctx context.Context, gameCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return ErrAlreadyJoined
	}

	conn, _, err := c.dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.URL, err)
	}

	frame, err := events.EncodeJoinGame(gameCode)
	if err != nil {
		conn.Close()
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return fmt.Errorf("send join_game: %w", err)
	}
	c.conn = conn

	c.wg.Add(2)
	go c.writePump()
	go c.readPump()

	log.Info().
		Str("url", c.config.URL).
		Str("game_code", gameCode).
		Msg("websocket channel connected")
	return nil
}

// Frames delivers inbound frames until the connection drops or Close is called.
func (c *WebSocketChannel) Frames() <-chan []byte {
	return c.frames
}

// Close shuts the connection down and waits for the pumps to exit.
func (c *WebSocketChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.wg.Wait()
	return nil
}

// writePump owns all writes after Join.
func (c *WebSocketChannel) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.wg.Done()
	}()

	for {
		select {
		case <-c.closing:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump forwards frames and closes Frames when the connection ends.
func (c *WebSocketChannel) readPump() {
	defer func() {
		close(c.frames)
		c.closeOnce.Do(func() { close(c.closing) })
		c.wg.Done()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		select {
		case c.frames <- message:
		case <-c.closing:
			return
		}
	}
}
