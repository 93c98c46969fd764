package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/hexfort/go/clients/authority"
	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

const malformedEventType = "malformed"

func (c *Client) handleFrame(raw []byte) {
	ev, err := events.Decode(raw)
	if err != nil {
		c.logger.Warn().Err(err).Int("size", len(raw)).Msg("dropping undecodable frame")
		c.metrics.RecordEventProcessed(malformedEventType, false)
		return
	}

	if c.phase == PhaseEnded {
		c.logger.Debug().Str("event_type", string(ev.Type())).Msg("session ended, ignoring event")
		c.metrics.RecordEventProcessed(string(ev.Type()), false)
		return
	}

	switch e := ev.(type) {
	case events.Joined:
		err = c.handleSnapshot(e.Snapshot, true)
	case events.GameUpdate:
		err = c.handleSnapshot(e.Snapshot, false)
	case events.MovePreview:
		err = c.handleMovePreview(e)
	case events.GameTimeout:
		c.handleTimeout(e)
	case events.ServerError:
		c.logger.Warn().Str("message", e.Message).Msg("authority reported an error")
		c.notify(NoticeServerError, e.Message)
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("dropping event")
	}
	c.metrics.RecordEventProcessed(string(ev.Type()), err == nil)
}

// handleSnapshot replaces the committed state with an authoritative
// snapshot. The first joined snapshot fixes the board shape; every later one
// must be a valid successor of the current board.
func (c *Client) handleSnapshot(snap events.Snapshot, joined bool) error {
	if c.phase == PhaseConnecting {
		if !joined {
			return fmt.Errorf("%w before joining", errUnexpectedUpdate)
		}
		if len(snap.Board) != board.Size {
			return fmt.Errorf("%w: got %d cells, want %d", board.ErrLengthChanged, len(snap.Board), board.Size)
		}
		if err := snap.Board.Validate(); err != nil {
			return err
		}
	} else if err := board.CheckSuccessor(c.state.Board, snap.Board); err != nil {
		return err
	}
	for _, side := range events.Sides {
		if m := snap.PendingMoves.Get(side); m != nil && !snap.Board.Playable(m.Index) {
			return fmt.Errorf("%w: %s pending move on unplayable cell %d", events.ErrMalformed, side, m.Index)
		}
	}

	c.state.Board = snap.Board.Clone()
	c.state.NextDeadline = snap.NextUpdate
	c.state.Pending = snap.PendingMoves.Clone()
	winnerLearned := false
	if !c.state.GameOver {
		c.state.GameOver = snap.GameOver
		c.state.Winner = snap.Winner
	} else if c.state.Winner == nil && snap.Winner != nil {
		// Game over stays, but a winner announced late is still taken.
		w := *snap.Winner
		c.state.Winner = &w
		winnerLearned = true
	}
	c.intent = nil
	rev := c.nextRevision()
	for _, side := range events.Sides {
		c.revisions[side] = rev
	}

	c.countdown.SetDeadline(c.state.NextDeadline)
	c.countdown.Restart()
	c.state.CountdownSeconds = c.countdown.Seconds()

	if c.phase == PhaseConnecting {
		c.setPhase(PhaseJoined)
		c.logger.Info().Msg("joined game")
	}

	switch {
	case c.state.GameOver:
		if c.phase != PhaseGameOver || winnerLearned {
			c.setPhase(PhaseGameOver)
			v := c.buildView()
			c.logger.Info().Str("outcome", v.Outcome()).Msg("game over")
			c.notify(NoticeGameOver, v.Outcome())
		}
	default:
		c.setPhase(PhaseActive)
	}
	return nil
}

func (c *Client) handleMovePreview(e events.MovePreview) error {
	if c.phase == PhaseConnecting {
		return fmt.Errorf("%w before joining", errUnexpectedUpdate)
	}
	if c.phase == PhaseGameOver {
		return ErrGameOver
	}
	if e.Move != nil && !c.state.Board.Playable(e.Move.Index) {
		return fmt.Errorf("%w: preview on unplayable cell %d", events.ErrMalformed, e.Move.Index)
	}

	c.state.Pending.Set(e.Side, e.Move)
	c.revisions[e.Side] = c.nextRevision()
	if e.Side == c.cfg.Side {
		c.intent = nil
	}
	return nil
}

func (c *Client) handleTimeout(e events.GameTimeout) {
	c.logger.Info().Str("reason", e.Reason).Msg("session timed out")
	c.intent = nil
	c.setPhase(PhaseEnded)
	c.notify(NoticeTimeout, e.Reason)
}

func (c *Client) handleDisconnect() {
	c.logger.Warn().Msg("realtime channel closed")
	c.notify(NoticeDisconnected, "Disconnected from the game server")
}

// handleGesture runs local preconditions and, when they pass, shows the move
// optimistically and submits it off the loop.
func (c *Client) handleGesture(g gesture) error {
	if err := c.checkGesture(g); err != nil {
		c.logger.Debug().Err(err).Int("index", g.index).Msg("move rejected locally")
		c.metrics.RecordLocalRejection(err.Error())
		c.notify(NoticeRejected, err.Error())
		return err
	}

	c.submitSeq++
	move := events.PendingMove{Index: g.index, Kind: g.kind}
	c.intent = &localIntent{seq: c.submitSeq, move: move, revision: c.nextRevision(), prev: c.intent}
	c.setPhase(PhaseMoveSubmitted)

	req := authority.MoveRequest{
		GameCode: c.cfg.GameCode,
		PlayerID: c.cfg.PlayerID,
		Index:    g.index,
		MoveType: g.kind,
	}
	go c.submit(c.submitSeq, move, req)
	return nil
}

func (c *Client) checkGesture(g gesture) error {
	switch c.phase {
	case PhaseConnecting:
		return ErrNotJoined
	case PhaseEnded:
		return ErrSessionEnded
	case PhaseGameOver:
		return ErrGameOver
	}
	if c.state.GameOver {
		return ErrGameOver
	}
	if !c.state.Board.Playable(g.index) {
		return ErrInvalidTarget
	}
	if !g.kind.Valid() {
		return ErrInvalidMove
	}
	return nil
}

func (c *Client) submit(seq uint64, move events.PendingMove, req authority.MoveRequest) {
	ctx, cancel := context.WithTimeout(c.sessionCtx, c.cfg.SubmitTimeout)
	defer cancel()

	err := c.submitter.SubmitMove(ctx, req)

	select {
	case c.results <- submitResult{seq: seq, move: move, err: err}:
	case <-c.done:
	}
}

func (c *Client) handleResult(res submitResult) {
	latest := res.seq == c.submitSeq
	if latest && c.phase == PhaseMoveSubmitted {
		c.setPhase(PhaseActive)
	}

	if res.err == nil {
		// The authority replaced everything this side submitted before.
		if accepted := c.intent.find(res.seq); accepted != nil {
			accepted.prev = nil
		}
		c.logger.Debug().
			Int("index", res.move.Index).
			Str("move_type", string(res.move.Kind)).
			Msg("move accepted")
		return
	}
	if errors.Is(res.err, context.Canceled) && c.sessionCtx.Err() != nil {
		return
	}

	c.intent = c.intent.without(res.seq)

	reason := res.err.Error()
	var rejected *authority.RejectedError
	if errors.As(res.err, &rejected) {
		reason = rejected.Reason
	}
	c.logger.Info().
		Int("index", res.move.Index).
		Str("move_type", string(res.move.Kind)).
		Str("reason", reason).
		Msg("move rejected")
	c.notify(NoticeRejected, reason)
}

// find returns the intent for submission seq in the chain, or nil.
func (i *localIntent) find(seq uint64) *localIntent {
	for ; i != nil; i = i.prev {
		if i.seq == seq {
			return i
		}
	}
	return nil
}

// without drops submission seq from the chain so the move shown before it is
// shown again.
func (i *localIntent) without(seq uint64) *localIntent {
	if i == nil {
		return nil
	}
	if i.seq == seq {
		return i.prev
	}
	i.prev = i.prev.without(seq)
	return i
}

var errUnexpectedUpdate = errors.New("unexpected update")
