package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
)

// EventType names a frame on the realtime channel.
type EventType string

const (
	// Outbound
	EventTypeJoinGame EventType = "join_game"

	// Inbound
	EventTypeJoined      EventType = "joined"
	EventTypeMovePreview EventType = "move_preview"
	EventTypeGameUpdate  EventType = "game_update"
	EventTypeGameTimeout EventType = "game_timeout"
	EventTypeError       EventType = "error"
)

var (
	// ErrUnknownEvent is returned for frames whose type is not part of the protocol.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrMalformed is returned for frames whose payload fails validation.
	ErrMalformed = errors.New("malformed event payload")
)

// Frame is the envelope of every message exchanged on the channel.
type Frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is the closed set of inbound events. Only types in this package implement it.
type Event interface {
	Type() EventType
	isEvent()
}

// Snapshot is the authoritative game state carried by joined and game_update.
type Snapshot struct {
	Board        board.Board
	NextUpdate   time.Time
	PendingMoves PendingMoves
	GameOver     bool
	Winner       *Side
}

// Joined confirms room membership and carries the initial snapshot.
type Joined struct{ Snapshot }

// GameUpdate is the result of a resolution tick.
type GameUpdate struct{ Snapshot }

// MovePreview echoes a side's pending move as recorded by the authority.
// A nil Move clears that side's pending move.
type MovePreview struct {
	Side Side
	Move *PendingMove
}

// GameTimeout ends the session because of inactivity.
type GameTimeout struct {
	Reason string
}

// ServerError is an error reported by the authority over the channel.
type ServerError struct {
	Message string
}

func (Joined) Type() EventType      { return EventTypeJoined }
func (GameUpdate) Type() EventType  { return EventTypeGameUpdate }
func (MovePreview) Type() EventType { return EventTypeMovePreview }
func (GameTimeout) Type() EventType { return EventTypeGameTimeout }
func (ServerError) Type() EventType { return EventTypeError }

func (Joined) isEvent()      {}
func (GameUpdate) isEvent()  {}
func (MovePreview) isEvent() {}
func (GameTimeout) isEvent() {}
func (ServerError) isEvent() {}

type snapshotPayload struct {
	Board          board.Board   `json:"board"`
	NextUpdateTime *float64      `json:"nextUpdateTime"`
	PendingMoves   *PendingMoves `json:"pendingMoves"`
	GameOver       bool          `json:"gameOver"`
	Winner         *string       `json:"winner"`
}

type movePreviewPayload struct {
	PlayerType string       `json:"playerType"`
	Move       *PendingMove `json:"move"`
}

type gameTimeoutPayload struct {
	Reason string `json:"reason"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinGamePayload struct {
	GameCode string `json:"gameCode"`
}

// Decode parses one inbound frame into a typed event. Optional fields are
// defaulted; anything that would leave the event ambiguous is rejected.
func Decode(raw []byte) (Event, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	return DecodeFrame(frame)
}

// DecodeFrame is Decode for an already parsed envelope.
func DecodeFrame(frame Frame) (Event, error) {
	switch frame.Type {
	case EventTypeJoined:
		snap, err := decodeSnapshot(frame.Data)
		if err != nil {
			return nil, err
		}
		return Joined{Snapshot: snap}, nil

	case EventTypeGameUpdate:
		snap, err := decodeSnapshot(frame.Data)
		if err != nil {
			return nil, err
		}
		return GameUpdate{Snapshot: snap}, nil

	case EventTypeMovePreview:
		var p movePreviewPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return nil, err
		}
		side, err := ParseSide(p.PlayerType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := validateMove(p.Move); err != nil {
			return nil, err
		}
		return MovePreview{Side: side, Move: p.Move}, nil

	case EventTypeGameTimeout:
		var p gameTimeoutPayload
		if len(frame.Data) > 0 {
			if err := unmarshalData(frame.Data, &p); err != nil {
				return nil, err
			}
		}
		if p.Reason == "" {
			p.Reason = "Game ended due to inactivity"
		}
		return GameTimeout{Reason: p.Reason}, nil

	case EventTypeError:
		var p errorPayload
		if len(frame.Data) > 0 {
			if err := unmarshalData(frame.Data, &p); err != nil {
				return nil, err
			}
		}
		if p.Message == "" {
			p.Message = "unknown server error"
		}
		return ServerError{Message: p.Message}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func decodeSnapshot(data json.RawMessage) (Snapshot, error) {
	var p snapshotPayload
	if err := unmarshalData(data, &p); err != nil {
		return Snapshot{}, err
	}
	if len(p.Board) == 0 {
		return Snapshot{}, fmt.Errorf("%w: missing board", ErrMalformed)
	}
	if p.NextUpdateTime == nil || math.IsNaN(*p.NextUpdateTime) || math.IsInf(*p.NextUpdateTime, 0) {
		return Snapshot{}, fmt.Errorf("%w: missing nextUpdateTime", ErrMalformed)
	}

	snap := Snapshot{
		Board:      p.Board,
		NextUpdate: EpochSecondsToTime(*p.NextUpdateTime),
		GameOver:   p.GameOver,
	}
	if p.PendingMoves != nil {
		for _, side := range Sides {
			move := p.PendingMoves.Get(side)
			if err := validateMove(move); err != nil {
				return Snapshot{}, err
			}
			if move != nil && !p.Board.InRange(move.Index) {
				return Snapshot{}, fmt.Errorf("%w: %s pending move index %d outside board", ErrMalformed, side, move.Index)
			}
		}
		snap.PendingMoves = p.PendingMoves.Clone()
	}
	// An empty winner means none.
	if p.Winner != nil && *p.Winner != "" {
		side, err := ParseSide(*p.Winner)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: winner: %v", ErrMalformed, err)
		}
		snap.Winner = &side
	}
	return snap, nil
}

func validateMove(m *PendingMove) error {
	if m == nil {
		return nil
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: move type %q", ErrMalformed, m.Kind)
	}
	if m.Index < 0 {
		return fmt.Errorf("%w: move index %d", ErrMalformed, m.Index)
	}
	return nil
}

// EpochSecondsToTime converts a wire deadline to a local timestamp with
// millisecond precision.
func EpochSecondsToTime(sec float64) time.Time {
	return time.UnixMilli(int64(math.Round(sec * 1000)))
}

// TimeToEpochSeconds is the inverse of EpochSecondsToTime.
func TimeToEpochSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// EncodeJoinGame builds the outbound join request frame.
func EncodeJoinGame(gameCode string) ([]byte, error) {
	return encode(EventTypeJoinGame, joinGamePayload{GameCode: gameCode})
}

// DecodeJoinGame parses a join request; it is used by channel relays.
func DecodeJoinGame(raw []byte) (string, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if frame.Type != EventTypeJoinGame {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}
	var p joinGamePayload
	if err := unmarshalData(frame.Data, &p); err != nil {
		return "", err
	}
	if p.GameCode == "" {
		return "", fmt.Errorf("%w: missing gameCode", ErrMalformed)
	}
	return p.GameCode, nil
}

// Encode serializes an inbound event in wire form. Authorities and test
// doubles use it to produce frames the client will accept.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Joined:
		return encode(EventTypeJoined, snapshotToPayload(e.Snapshot))
	case GameUpdate:
		return encode(EventTypeGameUpdate, snapshotToPayload(e.Snapshot))
	case MovePreview:
		return encode(EventTypeMovePreview, movePreviewPayload{PlayerType: string(e.Side), Move: e.Move})
	case GameTimeout:
		return encode(EventTypeGameTimeout, gameTimeoutPayload{Reason: e.Reason})
	case ServerError:
		return encode(EventTypeError, errorPayload{Message: e.Message})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func snapshotToPayload(s Snapshot) snapshotPayload {
	next := TimeToEpochSeconds(s.NextUpdate)
	pending := s.PendingMoves.Clone()
	p := snapshotPayload{
		Board:          s.Board,
		NextUpdateTime: &next,
		PendingMoves:   &pending,
		GameOver:       s.GameOver,
	}
	if s.Winner != nil {
		w := string(*s.Winner)
		p.Winner = &w
	}
	return p
}

func encode(t EventType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Frame{Type: t, Data: data})
}
