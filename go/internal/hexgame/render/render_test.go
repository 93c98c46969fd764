package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

func TestColorFor(t *testing.T) {
	assert.Equal(t, HostClaimColor, ColorFor(board.HostClaimed))
	assert.Equal(t, HostFortifyColor, ColorFor(board.HostFortified))
	assert.Equal(t, OpponentClaimColor, ColorFor(board.OpponentClaimed))
	assert.Equal(t, OpponentFortifyColor, ColorFor(board.OpponentFortified))
	assert.Equal(t, UnclaimedColor, ColorFor(board.Unclaimed))
	assert.False(t, ColorFor(board.Absent).Visible())
	assert.False(t, ColorFor(board.CellValue(5)).Visible())
}

func TestPreviewColorFor(t *testing.T) {
	assert.Equal(t, HostPreviewTint, PreviewColorFor(events.Host, events.Claim))
	assert.Equal(t, OpponentPreviewTint, PreviewColorFor(events.Player, events.Claim))
	assert.Equal(t, HostClaimColor, PreviewColorFor(events.Host, events.Defend))
	assert.Equal(t, OpponentClaimColor, PreviewColorFor(events.Player, events.Defend))
	assert.NotEqual(t, ColorFor(board.HostClaimed), PreviewColorFor(events.Host, events.Claim))
}

func TestResolveWithoutOverlay(t *testing.T) {
	a := Resolve(3, board.OpponentFortified, Overlay{})
	assert.Equal(t, OpponentFortifyColor, a.Fill)
	assert.Equal(t, "-2", a.Label)
	assert.False(t, a.Preview)

	a = Resolve(4, board.Unclaimed, Overlay{})
	assert.Equal(t, UnclaimedColor, a.Fill)
	assert.Empty(t, a.Label)

	a = Resolve(0, board.Absent, Overlay{Host: Layer{Move: &events.PendingMove{Index: 0, Kind: events.Claim}}})
	assert.False(t, a.Visible())
}

func TestResolvePreviewReplacesCommittedColor(t *testing.T) {
	o := Overlay{Host: Layer{Move: &events.PendingMove{Index: 8, Kind: events.Claim}, Revision: 1}}

	a := Resolve(8, board.OpponentClaimed, o)
	assert.Equal(t, HostPreviewTint, a.Fill)
	assert.True(t, a.Preview)
	assert.Equal(t, events.Host, a.PreviewBy)
	assert.Equal(t, "-1", a.Label, "committed value is kept under the preview")

	other := Resolve(9, board.OpponentClaimed, o)
	assert.Equal(t, OpponentClaimColor, other.Fill)
}

func TestResolveDualOverlayPrecedence(t *testing.T) {
	hostMove := &events.PendingMove{Index: 10, Kind: events.Claim}
	playerMove := &events.PendingMove{Index: 10, Kind: events.Defend}

	newerPlayer := Overlay{
		Host:   Layer{Move: hostMove, Revision: 1},
		Player: Layer{Move: playerMove, Revision: 2},
	}
	a := Resolve(10, board.Unclaimed, newerPlayer)
	assert.Equal(t, events.Player, a.PreviewBy)
	assert.Equal(t, OpponentClaimColor, a.Fill)

	newerHost := Overlay{
		Host:   Layer{Move: hostMove, Revision: 5},
		Player: Layer{Move: playerMove, Revision: 2},
	}
	assert.Equal(t, events.Host, Resolve(10, board.Unclaimed, newerHost).PreviewBy)

	tie := Overlay{
		Host:   Layer{Move: hostMove, Revision: 3},
		Player: Layer{Move: playerMove, Revision: 3},
	}
	a = Resolve(10, board.Unclaimed, tie)
	assert.Equal(t, events.Host, a.PreviewBy)
	assert.Equal(t, HostPreviewTint, a.Fill)
}
