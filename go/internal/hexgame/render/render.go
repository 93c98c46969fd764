// Package render maps committed cell values and pending-move overlays to
// display colors. It holds no state.
package render

import (
	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

// Color is a CSS color. The zero value means "do not render".
type Color string

const (
	None Color = ""

	HostClaimColor       Color = "#90EE90"
	HostFortifyColor     Color = "#228B22"
	OpponentClaimColor   Color = "#FF0000"
	OpponentFortifyColor Color = "#8B0000"
	UnclaimedColor       Color = "#808080"
	HostPreviewTint      Color = "rgba(144, 238, 144, 0.5)"
	OpponentPreviewTint  Color = "rgba(255, 0, 0, 0.5)"
)

// Visible reports whether the color should be drawn.
func (c Color) Visible() bool {
	return c != None
}

// ColorFor returns the committed color of a cell value. Absent and undefined
// values are not rendered.
func ColorFor(v board.CellValue) Color {
	switch v {
	case board.HostClaimed:
		return HostClaimColor
	case board.HostFortified:
		return HostFortifyColor
	case board.OpponentClaimed:
		return OpponentClaimColor
	case board.OpponentFortified:
		return OpponentFortifyColor
	case board.Unclaimed:
		return UnclaimedColor
	default:
		return None
	}
}

// PreviewColorFor returns the color of a pending move. Claims are a
// translucent tint of the side's color; defends use the full side color.
func PreviewColorFor(side events.Side, kind events.MoveKind) Color {
	if kind == events.Defend {
		if side == events.Host {
			return HostClaimColor
		}
		return OpponentClaimColor
	}
	if side == events.Host {
		return HostPreviewTint
	}
	return OpponentPreviewTint
}

// Layer is one side's pending move as seen by the renderer. Revision orders
// layers: a higher revision was updated more recently.
type Layer struct {
	Move     *events.PendingMove
	Revision uint64
}

// Overlay holds the pending-move layers of both sides.
type Overlay struct {
	Host   Layer
	Player Layer
}

// Layer returns the layer of side.
func (o Overlay) Layer(side events.Side) Layer {
	if side == events.Host {
		return o.Host
	}
	return o.Player
}

// Appearance is what a single cell looks like on screen.
type Appearance struct {
	Fill      Color
	Label     string
	Preview   bool
	PreviewBy events.Side
	Kind      events.MoveKind
}

// Visible reports whether the cell is drawn at all.
func (a Appearance) Visible() bool {
	return a.Fill.Visible()
}

// Resolve returns the appearance of the cell at index. A pending move on the
// cell replaces its committed color; the committed value still drives the
// label. When both sides target the same cell the more recently updated
// layer is shown, and the host layer wins a tie.
func Resolve(index int, v board.CellValue, o Overlay) Appearance {
	if v.IsAbsent() {
		return Appearance{}
	}

	a := Appearance{Fill: ColorFor(v)}
	if v != board.Unclaimed && a.Fill.Visible() {
		a.Label = v.String()
	}

	var (
		winner events.Side
		best   *Layer
	)
	for _, side := range events.Sides {
		layer := o.Layer(side)
		if layer.Move == nil || layer.Move.Index != index {
			continue
		}
		if best == nil || layer.Revision > best.Revision {
			l := layer
			best = &l
			winner = side
		}
	}
	if best != nil {
		a.Fill = PreviewColorFor(winner, best.Move.Kind)
		a.Preview = true
		a.PreviewBy = winner
		a.Kind = best.Move.Kind
	}
	return a
}
