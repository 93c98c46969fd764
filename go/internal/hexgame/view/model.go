// Package view turns session snapshots into something a person can look at
// and click on: a JSON/SVG board, a browser push feed and a gesture endpoint.
package view

import (
	"fmt"

	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/realtime"
	"github.com/mcdev12/hexfort/go/internal/hexgame/render"
)

const controlsHint = "Left click to claim, Right click to defend"

// CellView is one drawable hex.
type CellView struct {
	Index   int             `json:"index"`
	Col     int             `json:"col"`
	Row     int             `json:"row"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Fill    render.Color    `json:"fill"`
	Label   string          `json:"label,omitempty"`
	Preview bool            `json:"preview,omitempty"`
	Kind    events.MoveKind `json:"move_type,omitempty"`
}

// BoardView is everything needed to draw one frame of the board.
type BoardView struct {
	GameCode  string           `json:"game_code"`
	You       events.Side      `json:"you"`
	Color     string           `json:"color"`
	Phase     string           `json:"phase"`
	Countdown int              `json:"countdown"`
	GameOver  bool             `json:"game_over"`
	Winner    *events.Side     `json:"winner,omitempty"`
	Status    string           `json:"status"`
	Controls  string           `json:"controls,omitempty"`
	Width     float64          `json:"width"`
	Height    float64          `json:"height"`
	Cells     []CellView       `json:"cells"`
	Notice    *realtime.Notice `json:"notice,omitempty"`
}

// Build lays out every playable cell of v with its resolved appearance.
// Absent cells are skipped.
func Build(v realtime.View) BoardView {
	width, height := board.Extent()
	bv := BoardView{
		GameCode:  v.GameCode,
		You:       v.Side,
		Color:     sideColorName(v.Side),
		Phase:     v.Phase.String(),
		Countdown: v.State.CountdownSeconds,
		GameOver:  v.State.GameOver,
		Winner:    v.State.Winner,
		Width:     width,
		Height:    height,
		Cells:     make([]CellView, 0, len(v.State.Board)),
		Notice:    v.LastNotice,
	}

	if v.State.GameOver {
		bv.Status = "Game Over! " + v.Outcome()
	} else {
		bv.Status = fmt.Sprintf("Next Move In: %d seconds", v.State.CountdownSeconds)
		bv.Controls = controlsHint
	}

	for i, value := range v.State.Board {
		if i >= board.Size {
			break
		}
		a := render.Resolve(i, value, v.Overlay)
		if !a.Visible() {
			continue
		}
		col, row := board.LayoutOf(i)
		x, y := board.PixelPositionOf(col, row)
		bv.Cells = append(bv.Cells, CellView{
			Index:   i,
			Col:     col,
			Row:     row,
			X:       x,
			Y:       y,
			Fill:    a.Fill,
			Label:   a.Label,
			Preview: a.Preview,
			Kind:    a.Kind,
		})
	}
	return bv
}

// Cell returns the cell with the given board index.
func (bv BoardView) Cell(index int) (CellView, bool) {
	for _, c := range bv.Cells {
		if c.Index == index {
			return c, true
		}
	}
	return CellView{}, false
}

func sideColorName(s events.Side) string {
	if s == events.Host {
		return "Green"
	}
	return "Red"
}
