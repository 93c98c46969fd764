package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

// NATSConfig holds configuration for the NATS channel
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	JoinTimeout   time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
	FrameBuffer   int
}

// DefaultNATSConfig returns default NATS channel configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "hexfort.games",
		JoinTimeout:   10 * time.Second,
		MaxReconnects: 0,
		ReconnectWait: 2 * time.Second,
		FrameBuffer:   64,
	}
}

// EventsSubject is the subject the authority publishes a game's frames on.
func EventsSubject(prefix, gameCode string) string {
	return fmt.Sprintf("%s.%s.events", prefix, gameCode)
}

// JoinSubject is the request subject answered with a joined frame.
func JoinSubject(prefix, gameCode string) string {
	return fmt.Sprintf("%s.%s.join", prefix, gameCode)
}

// NATSChannel receives game frames from a NATS subject. Joining is a
// request/reply whose reply is delivered as the first frame.
type NATSChannel struct {
	config NATSConfig

	frames  chan []byte
	closing chan struct{}
	lost    chan struct{}

	mu        sync.Mutex
	nc        *nats.Conn
	sub       *nats.Subscription
	closeOnce sync.Once
	lostOnce  sync.Once
	wg        sync.WaitGroup
}

// NewNATSChannel creates an unconnected channel. Join connects.
func NewNATSChannel(config NATSConfig) *NATSChannel {
	defaults := DefaultNATSConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = defaults.SubjectPrefix
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = defaults.JoinTimeout
	}
	if config.ReconnectWait <= 0 {
		config.ReconnectWait = defaults.ReconnectWait
	}
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = defaults.FrameBuffer
	}
	return &NATSChannel{
		config:  config,
		frames:  make(chan []byte, config.FrameBuffer),
		closing: make(chan struct{}),
		lost:    make(chan struct{}),
	}
}

// Join connects, subscribes to the game's events and requests to join.
// Events published while the join request is in flight are delivered after
// the joined reply.
func (c *NATSChannel) Join(ctx context.Context, gameCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		return ErrAlreadyJoined
	}

	opts := []nats.Option{
		nats.Name("hexfort-client"),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.lostOnce.Do(func() { close(c.lost) })
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	pending := make(chan *nats.Msg, c.config.FrameBuffer)
	subject := EventsSubject(c.config.SubjectPrefix, gameCode)
	sub, err := nc.ChanSubscribe(subject, pending)
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	request, err := events.EncodeJoinGame(gameCode)
	if err != nil {
		nc.Close()
		return err
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.config.JoinTimeout)
	defer cancel()
	reply, err := nc.RequestWithContext(reqCtx, JoinSubject(c.config.SubjectPrefix, gameCode), request)
	if err != nil {
		nc.Close()
		return fmt.Errorf("join request: %w", err)
	}

	c.nc = nc
	c.sub = sub
	c.frames <- reply.Data

	c.wg.Add(1)
	go c.pump(pending)

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", subject).
		Str("game_code", gameCode).
		Msg("NATS channel connected")
	return nil
}

// Frames delivers inbound frames until the connection closes or Close is called.
func (c *NATSChannel) Frames() <-chan []byte {
	return c.frames
}

// Close unsubscribes, closes the connection and waits for delivery to stop.
func (c *NATSChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })

	c.mu.Lock()
	nc, sub := c.nc, c.sub
	c.mu.Unlock()
	if nc == nil {
		return nil
	}

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	nc.Close()
	c.wg.Wait()
	if err != nil && err != nats.ErrConnectionClosed {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (c *NATSChannel) pump(pending <-chan *nats.Msg) {
	defer func() {
		close(c.frames)
		c.wg.Done()
	}()

	for {
		select {
		case msg := <-pending:
			select {
			case c.frames <- msg.Data:
			case <-c.closing:
				return
			case <-c.lost:
				return
			}
		case <-c.closing:
			return
		case <-c.lost:
			log.Warn().Msg("NATS connection closed")
			return
		}
	}
}
