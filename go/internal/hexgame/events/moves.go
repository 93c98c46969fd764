package events

import "fmt"

// Side identifies one of the two parties. The wire names follow the authority:
// the creator of a game is the host, the joiner is the player.
type Side string

const (
	Host   Side = "host"
	Player Side = "player"
)

// Sides lists both sides in rendering tie-break order.
var Sides = [2]Side{Host, Player}

// ParseSide validates a wire side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Host, Player:
		return Side(s), nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == Host || s == Player
}

// MoveKind is the type of intent a side can place on a cell.
type MoveKind string

const (
	Claim  MoveKind = "claim"
	Defend MoveKind = "defend"
)

// ParseMoveKind validates a wire move type.
func ParseMoveKind(s string) (MoveKind, error) {
	switch MoveKind(s) {
	case Claim, Defend:
		return MoveKind(s), nil
	default:
		return "", fmt.Errorf("unknown move type %q", s)
	}
}

// Valid reports whether k is a known move kind.
func (k MoveKind) Valid() bool {
	return k == Claim || k == Defend
}

// PendingMove is a side's not-yet-resolved intent for the current tick.
type PendingMove struct {
	Index int      `json:"index"`
	Kind  MoveKind `json:"type"`
}

// PendingMoves holds at most one pending move per side.
type PendingMoves struct {
	Host   *PendingMove `json:"host"`
	Player *PendingMove `json:"player"`
}

// Get returns the pending move of side, or nil.
func (p PendingMoves) Get(side Side) *PendingMove {
	if side == Host {
		return p.Host
	}
	return p.Player
}

// Set replaces the pending move of side. A nil move clears it.
func (p *PendingMoves) Set(side Side, move *PendingMove) {
	var stored *PendingMove
	if move != nil {
		m := *move
		stored = &m
	}
	if side == Host {
		p.Host = stored
	} else {
		p.Player = stored
	}
}

// Clone returns a deep copy.
func (p PendingMoves) Clone() PendingMoves {
	var out PendingMoves
	out.Set(Host, p.Host)
	out.Set(Player, p.Player)
	return out
}
