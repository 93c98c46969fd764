package realtime

import (
	"time"

	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/render"
)

// Phase is the state of a session.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseJoined
	PhaseActive
	PhaseMoveSubmitted
	PhaseGameOver
	// PhaseEnded is entered when the authority ends the session for inactivity.
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseJoined:
		return "joined"
	case PhaseActive:
		return "active"
	case PhaseMoveSubmitted:
		return "move-submitted"
	case PhaseGameOver:
		return "game-over"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further moves can be made in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver || p == PhaseEnded
}

// GameState is the committed, authoritative view of a game. CountdownSeconds
// is derived from NextDeadline and is never set on its own.
type GameState struct {
	Board            board.Board         `json:"board"`
	NextDeadline     time.Time           `json:"next_deadline"`
	Pending          events.PendingMoves `json:"pending_moves"`
	CountdownSeconds int                 `json:"countdown_seconds"`
	GameOver         bool                `json:"game_over"`
	Winner           *events.Side        `json:"winner,omitempty"`
}

// Clone returns a deep copy.
func (s GameState) Clone() GameState {
	out := s
	out.Board = s.Board.Clone()
	out.Pending = s.Pending.Clone()
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	return out
}

// NoticeKind classifies user-visible notices.
type NoticeKind string

const (
	NoticeConnectionFailed NoticeKind = "connection_failed"
	NoticeDisconnected     NoticeKind = "disconnected"
	NoticeRejected         NoticeKind = "rejected"
	NoticeServerError      NoticeKind = "server_error"
	NoticeTimeout          NoticeKind = "timeout"
	NoticeGameOver         NoticeKind = "game_over"
)

// Notice is a message for the user. Every failure in a session ends up as one.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// Terminal reports whether the notice ends the session.
func (n Notice) Terminal() bool {
	return n.Kind == NoticeTimeout || n.Kind == NoticeConnectionFailed
}

// View is an immutable snapshot handed to observers. Overlay merges the
// committed pending moves with this client's unconfirmed local intent.
type View struct {
	SessionID  string         `json:"session_id"`
	GameCode   string         `json:"game_code"`
	Side       events.Side    `json:"side"`
	Phase      Phase          `json:"-"`
	State      GameState      `json:"state"`
	Overlay    render.Overlay `json:"-"`
	LastNotice *Notice        `json:"last_notice,omitempty"`
}

// Clone returns a copy that shares no memory with v.
func (v View) Clone() View {
	out := v
	out.State = v.State.Clone()
	out.Overlay.Host.Move = copyMove(v.Overlay.Host.Move)
	out.Overlay.Player.Move = copyMove(v.Overlay.Player.Move)
	if v.LastNotice != nil {
		n := *v.LastNotice
		out.LastNotice = &n
	}
	return out
}

// PendingMoves returns the pending moves as they should be displayed.
func (v View) PendingMoves() events.PendingMoves {
	var p events.PendingMoves
	p.Set(events.Host, v.Overlay.Host.Move)
	p.Set(events.Player, v.Overlay.Player.Move)
	return p
}

// Outcome describes the result for side once the game is over.
func (v View) Outcome() string {
	if !v.State.GameOver {
		return ""
	}
	if v.State.Winner != nil && *v.State.Winner == v.Side {
		return "You won!"
	}
	return "You lost!"
}
