// Package realtime keeps a local game view in step with the remote authority.
//
// A Client owns exactly one GameState. Channel frames, move submissions,
// submission results and countdown ticks are all handled by the goroutine
// running Client.Run, so the state needs no locking and events are applied
// strictly in arrival order. Other goroutines only observe published Views.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/hexfort/go/clients/authority"
	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/countdown"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/render"
)

var (
	ErrNotJoined     = errors.New("not joined to a game yet")
	ErrGameOver      = errors.New("game is over")
	ErrSessionEnded  = errors.New("session has ended")
	ErrInvalidTarget = errors.New("invalid target")
	ErrInvalidMove   = errors.New("invalid move type")
	ErrJoinTimeout   = errors.New("timed out waiting to join game")
	ErrChannelClosed = errors.New("channel closed")
	ErrClosed        = errors.New("client closed")
)

// Channel is a realtime subscription to one game room.
type Channel interface {
	// Join connects and announces the game room to the authority.
	Join(ctx context.Context, gameCode string) error
	// Frames delivers inbound frames. It is closed when the channel drops.
	Frames() <-chan []byte
	// Close releases the channel. It is safe to call more than once.
	Close() error
}

// MoveSubmitter sends moves to the authority. A nil error means accepted.
type MoveSubmitter interface {
	SubmitMove(ctx context.Context, req authority.MoveRequest) error
}

// Config identifies the session and tunes its timing.
type Config struct {
	GameCode        string
	PlayerID        string
	Side            events.Side
	TickInterval    time.Duration
	JoinTimeout     time.Duration
	SubmitTimeout   time.Duration
	InitialDeadline time.Duration
}

// DefaultConfig returns default session timing
func DefaultConfig() Config {
	return Config{
		TickInterval:    countdown.DefaultInterval,
		JoinTimeout:     10 * time.Second,
		SubmitTimeout:   10 * time.Second,
		InitialDeadline: 5 * time.Second,
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithClock replaces the real clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithMetrics installs a metrics collector.
func WithMetrics(metrics MetricsCollector) Option {
	return func(c *Client) { c.metrics = metrics }
}

type gesture struct {
	index int
	kind  events.MoveKind
	reply chan error
}

type submitResult struct {
	seq  uint64
	move events.PendingMove
	err  error
}

// localIntent is this client's own move that the authority has not echoed yet.
// prev is the intent it replaced, restored if this one is rejected.
type localIntent struct {
	seq      uint64
	move     events.PendingMove
	revision uint64
	prev     *localIntent
}

// Client is the realtime sync client for one game session.
type Client struct {
	cfg       Config
	channel   Channel
	submitter MoveSubmitter
	clock     clockwork.Clock
	metrics   MetricsCollector
	sessionID string
	logger    zerolog.Logger

	gestures chan gesture
	results  chan submitResult
	updates  chan View
	notices  chan Notice
	done     chan struct{}
	runOnce  sync.Once
	joinWG   sync.WaitGroup

	mu      sync.RWMutex
	current View

	// Owned by the Run goroutine.
	state      GameState
	phase      Phase
	intent     *localIntent
	revisions  map[events.Side]uint64
	revision   uint64
	submitSeq  uint64
	countdown  *countdown.Countdown
	lastNotice *Notice
	sessionCtx context.Context
}

// NewClient creates a client for cfg.GameCode. Nothing happens until Run.
func NewClient(cfg Config, channel Channel, submitter MoveSubmitter, opts ...Option) (*Client, error) {
	if cfg.GameCode == "" {
		return nil, errors.New("game code is required")
	}
	if !cfg.Side.Valid() {
		return nil, fmt.Errorf("invalid side %q", cfg.Side)
	}
	defaults := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaults.JoinTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaults.SubmitTimeout
	}
	if cfg.InitialDeadline <= 0 {
		cfg.InitialDeadline = defaults.InitialDeadline
	}

	c := &Client{
		cfg:       cfg,
		channel:   channel,
		clock:     clockwork.NewRealClock(),
		metrics:   &NoOpMetricsCollector{},
		sessionID: uuid.New().String(),
		gestures:  make(chan gesture),
		results:   make(chan submitResult),
		updates:   make(chan View, 1),
		notices:   make(chan Notice, 32),
		done:      make(chan struct{}),
		revisions: make(map[events.Side]uint64, 2),
		phase:     PhaseConnecting,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.submitter = NewMetricSubmitter(submitter, c.metrics, c.clock)
	c.countdown = countdown.New(c.clock, cfg.TickInterval)
	c.logger = log.With().
		Str("session_id", c.sessionID).
		Str("game_code", cfg.GameCode).
		Str("side", string(cfg.Side)).
		Logger()

	c.state = GameState{
		Board:        board.Initial(),
		NextDeadline: c.clock.Now().Add(cfg.InitialDeadline),
	}
	c.state.CountdownSeconds = countdown.Remaining(c.state.NextDeadline, c.clock.Now())
	c.current = c.buildView()

	return c, nil
}

// SessionID identifies this session in logs.
func (c *Client) SessionID() string { return c.sessionID }

// Side is the side this client plays.
func (c *Client) Side() events.Side { return c.cfg.Side }

// Updates delivers the latest View after every change. Only the most recent
// undelivered View is kept.
func (c *Client) Updates() <-chan View { return c.updates }

// Notices delivers user-visible notices.
func (c *Client) Notices() <-chan Notice { return c.notices }

// Done is closed once Run has torn the session down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Current returns a copy of the most recently published View.
func (c *Client) Current() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// SubmitMove asks the session to play kind on the cell at index. Local
// preconditions are checked before anything is sent; a nil return means the
// move was sent and is shown optimistically. The authority's verdict arrives
// later as a notice if it rejects the move.
func (c *Client) SubmitMove(ctx context.Context, index int, kind events.MoveKind) error {
	g := gesture{index: index, kind: kind, reply: make(chan error, 1)}
	select {
	case c.gestures <- g:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-g.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Run joins the game and processes events until ctx is cancelled, the join
// fails, or the channel drops before the join completes. The countdown is
// stopped and the channel closed on every return path. Moves submitted while
// the channel is still connecting are refused with ErrNotJoined.
func (c *Client) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("client already running")
	}

	sessionCtx, cancelSession := context.WithCancel(ctx)
	c.sessionCtx = sessionCtx
	defer c.teardown(cancelSession)

	c.countdown.SetDeadline(c.state.NextDeadline)
	c.countdown.Restart()
	c.publish()

	// The join timer covers both the dial and the joined snapshot.
	joinTimer := c.clock.NewTimer(c.cfg.JoinTimeout)
	defer joinTimer.Stop()
	joinDeadline := joinTimer.Chan()

	joined := c.startJoin(sessionCtx)
	var frames <-chan []byte
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("session shutting down")
			return nil

		case err := <-joined:
			joined = nil
			if err != nil && ctx.Err() != nil {
				c.logger.Info().Msg("session shutting down")
				return nil
			}
			if err != nil {
				c.notify(NoticeConnectionFailed, fmt.Sprintf("Could not connect to game %s: %v", c.cfg.GameCode, err))
				c.publish()
				return fmt.Errorf("join game %s: %w", c.cfg.GameCode, err)
			}
			frames = c.channel.Frames()
			continue

		case raw, ok := <-frames:
			if !ok {
				frames = nil
				if c.phase == PhaseConnecting {
					c.notify(NoticeConnectionFailed, "Connection closed before joining the game")
					c.publish()
					return fmt.Errorf("join game %s: %w", c.cfg.GameCode, ErrChannelClosed)
				}
				c.handleDisconnect()
				break
			}
			c.handleFrame(raw)
			if c.phase != PhaseConnecting {
				joinDeadline = nil
			}

		case g := <-c.gestures:
			err := c.handleGesture(g)
			c.publish()
			g.reply <- err
			continue

		case res := <-c.results:
			c.handleResult(res)

		case <-c.countdown.C():
			c.state.CountdownSeconds = c.countdown.Seconds()

		case <-joinDeadline:
			c.notify(NoticeConnectionFailed, "Timed out waiting to join the game")
			c.publish()
			return fmt.Errorf("join game %s: %w", c.cfg.GameCode, ErrJoinTimeout)
		}
		c.publish()
	}
}

// startJoin dials off the loop so gestures are answered while connecting.
func (c *Client) startJoin(ctx context.Context) <-chan error {
	c.logger.Info().Msg("joining game")
	result := make(chan error, 1)
	c.joinWG.Add(1)
	go func() {
		defer c.joinWG.Done()
		result <- c.channel.Join(ctx, c.cfg.GameCode)
	}()
	return result
}

func (c *Client) teardown(cancelSession context.CancelFunc) {
	cancelSession()
	c.joinWG.Wait()
	c.countdown.Stop()
	if err := c.channel.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to close channel")
	}
	close(c.done)
	c.logger.Info().Str("phase", c.phase.String()).Msg("session torn down")
}

func (c *Client) setPhase(p Phase) {
	if c.phase == p {
		return
	}
	c.logger.Debug().
		Str("from", c.phase.String()).
		Str("to", p.String()).
		Msg("phase transition")
	c.phase = p
}

func (c *Client) nextRevision() uint64 {
	c.revision++
	return c.revision
}

// notify records a notice and hands it to observers without blocking.
func (c *Client) notify(kind NoticeKind, message string) {
	n := Notice{Kind: kind, Message: message, At: c.clock.Now()}
	c.lastNotice = &n

	select {
	case c.notices <- n:
	default:
		c.logger.Warn().Str("kind", string(kind)).Msg("notice channel full, dropping notice")
	}
}

func (c *Client) buildView() View {
	overlay := render.Overlay{
		Host:   render.Layer{Move: c.state.Pending.Host, Revision: c.revisions[events.Host]},
		Player: render.Layer{Move: c.state.Pending.Player, Revision: c.revisions[events.Player]},
	}
	if c.intent != nil {
		move := c.intent.move
		layer := render.Layer{Move: &move, Revision: c.intent.revision}
		if c.cfg.Side == events.Host {
			overlay.Host = layer
		} else {
			overlay.Player = layer
		}
	}
	// Layers must not alias loop-owned state.
	overlay.Host.Move = copyMove(overlay.Host.Move)
	overlay.Player.Move = copyMove(overlay.Player.Move)

	v := View{
		SessionID: c.sessionID,
		GameCode:  c.cfg.GameCode,
		Side:      c.cfg.Side,
		Phase:     c.phase,
		State:     c.state.Clone(),
		Overlay:   overlay,
	}
	if c.lastNotice != nil {
		n := *c.lastNotice
		v.LastNotice = &n
	}
	return v
}

// publish stores the current View and offers a separate copy to the updates
// channel, replacing an undelivered older View.
func (c *Client) publish() {
	v := c.buildView()

	c.mu.Lock()
	c.current = v
	c.mu.Unlock()

	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- v.Clone():
	default:
	}
}

func copyMove(m *events.PendingMove) *events.PendingMove {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}
