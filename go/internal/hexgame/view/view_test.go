package view

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/hexfort/go/internal/hexgame/board"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/realtime"
	"github.com/mcdev12/hexfort/go/internal/hexgame/render"
)

type submittedMove struct {
	index int
	kind  events.MoveKind
}

type fakeSession struct {
	mu        sync.Mutex
	view      realtime.View
	submitErr error
	submitted []submittedMove

	updates chan realtime.View
	notices chan realtime.Notice
}

func newFakeSession(v realtime.View) *fakeSession {
	return &fakeSession{
		view:    v,
		updates: make(chan realtime.View, 1),
		notices: make(chan realtime.Notice, 4),
	}
}

func (f *fakeSession) Current() realtime.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeSession) Updates() <-chan realtime.View   { return f.updates }
func (f *fakeSession) Notices() <-chan realtime.Notice { return f.notices }

func (f *fakeSession) SubmitMove(ctx context.Context, index int, kind events.MoveKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, submittedMove{index: index, kind: kind})
	return nil
}

func activeView() realtime.View {
	b := board.Initial()
	b[8] = board.HostClaimed
	b[15] = board.OpponentFortified
	return realtime.View{
		SessionID: "session-1",
		GameCode:  "ABC123",
		Side:      events.Host,
		Phase:     realtime.PhaseActive,
		State: realtime.GameState{
			Board:            b,
			CountdownSeconds: 4,
		},
		Overlay: render.Overlay{
			Player: render.Layer{Move: &events.PendingMove{Index: 9, Kind: events.Claim}, Revision: 1},
		},
	}
}

func gameOverView(winner events.Side) realtime.View {
	v := activeView()
	v.Phase = realtime.PhaseGameOver
	v.State.GameOver = true
	v.State.Winner = &winner
	return v
}

func playableCount(b board.Board) int {
	n := 0
	for i := range b {
		if b.Playable(i) {
			n++
		}
	}
	return n
}

func TestBuild(t *testing.T) {
	v := activeView()
	bv := Build(v)

	assert.Equal(t, "ABC123", bv.GameCode)
	assert.Equal(t, "Green", bv.Color)
	assert.Equal(t, "active", bv.Phase)
	assert.Equal(t, "Next Move In: 4 seconds", bv.Status)
	assert.Equal(t, controlsHint, bv.Controls)
	assert.Len(t, bv.Cells, playableCount(v.State.Board))

	_, ok := bv.Cell(0)
	assert.False(t, ok, "absent cells are not drawn")

	c, ok := bv.Cell(8)
	require.True(t, ok)
	assert.Equal(t, render.HostClaimColor, c.Fill)
	assert.Equal(t, "1", c.Label)
	col, row := board.LayoutOf(8)
	x, y := board.PixelPositionOf(col, row)
	assert.Equal(t, col, c.Col)
	assert.Equal(t, row, c.Row)
	assert.InDelta(t, x, c.X, 1e-9)
	assert.InDelta(t, y, c.Y, 1e-9)

	c, ok = bv.Cell(9)
	require.True(t, ok)
	assert.True(t, c.Preview)
	assert.Equal(t, render.OpponentPreviewTint, c.Fill)
	assert.Equal(t, events.Claim, c.Kind)

	c, ok = bv.Cell(15)
	require.True(t, ok)
	assert.Equal(t, render.OpponentFortifyColor, c.Fill)
	assert.Equal(t, "-2", c.Label)
}

func TestBuildGameOver(t *testing.T) {
	bv := Build(gameOverView(events.Player))
	assert.True(t, bv.GameOver)
	assert.Equal(t, "Game Over! You lost!", bv.Status)
	assert.Empty(t, bv.Controls)

	player := realtime.View{Side: events.Player, State: realtime.GameState{Board: board.Initial()}}
	assert.Equal(t, "Red", Build(player).Color)
}

func TestRenderSVG(t *testing.T) {
	v := activeView()
	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, Build(v)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</svg>"))
	assert.Equal(t, playableCount(v.State.Board), strings.Count(out, "<polygon"))
	assert.Contains(t, out, `data-index="8"`)
	assert.NotContains(t, out, `data-index="0"`)
	assert.Contains(t, out, `fill="#90EE90"`)
	assert.Contains(t, out, `class="hex preview"`)
	assert.Equal(t, 2, strings.Count(out, "<text"))
}

func TestMoveKindForButton(t *testing.T) {
	kind, err := MoveKindForButton("left")
	require.NoError(t, err)
	assert.Equal(t, events.Claim, kind)

	kind, err = MoveKindForButton("right")
	require.NoError(t, err)
	assert.Equal(t, events.Defend, kind)

	_, err = MoveKindForButton("middle")
	assert.Error(t, err)
}

func postMove(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/moves", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestHandleMove(t *testing.T) {
	session := newFakeSession(activeView())
	handler := NewServer(session, nil, DefaultHubConfig()).Handler()

	rec := postMove(t, handler, `{"index": 10, "button": "left"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = postMove(t, handler, `{"index": 11, "button": "right"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = postMove(t, handler, `{"index": 12, "button": "left", "type": "defend"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []submittedMove{
		{index: 10, kind: events.Claim},
		{index: 11, kind: events.Defend},
		{index: 12, kind: events.Defend},
	}, session.submitted)

	rec = postMove(t, handler, `{"index": 11, "button": "middle"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postMove(t, handler, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMoveErrors(t *testing.T) {
	tests := []struct {
		name       string
		view       realtime.View
		err        error
		wantStatus int
		wantError  string
	}{
		{"game over winner", gameOverView(events.Host), realtime.ErrGameOver, http.StatusConflict, "You won!"},
		{"game over loser", gameOverView(events.Player), realtime.ErrGameOver, http.StatusConflict, "You lost!"},
		{"absent cell", activeView(), realtime.ErrInvalidTarget, http.StatusUnprocessableEntity, "invalid target"},
		{"session ended", activeView(), realtime.ErrSessionEnded, http.StatusConflict, realtime.ErrSessionEnded.Error()},
		{"closed", activeView(), realtime.ErrClosed, http.StatusServiceUnavailable, realtime.ErrClosed.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFakeSession(tt.view)
			session.submitErr = tt.err
			handler := NewServer(session, nil, DefaultHubConfig()).Handler()

			rec := postMove(t, handler, `{"index": 0, "button": "left"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rec))
		})
	}
}

func TestReadEndpoints(t *testing.T) {
	session := newFakeSession(activeView())
	metrics := realtime.NewCounterMetrics()
	metrics.RecordEventProcessed("game_update", true)
	handler := NewServer(session, metrics, DefaultHubConfig()).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var bv BoardView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bv))
	assert.Equal(t, "ABC123", bv.GameCode)
	assert.Equal(t, 4, bv.Countdown)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/board.svg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, "active", stats["phase"])
	assert.Contains(t, stats, "metrics")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/board", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewServer(newFakeSession(activeView()), nil, DefaultHubConfig()).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/moves", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartRecordsNoticesAndPushesViews(t *testing.T) {
	session := newFakeSession(activeView())
	server := NewServer(session, nil, DefaultHubConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws/board"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial BoardView
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, 4, initial.Countdown)

	next := activeView()
	next.State.CountdownSeconds = 3
	session.updates <- next

	var pushed BoardView
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, 3, pushed.Countdown)

	session.notices <- realtime.Notice{Kind: realtime.NoticeRejected, Message: "Cell already targeted"}
	require.Eventually(t, func() bool { return len(server.Notices()) == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notices", nil))
	var notices []realtime.Notice
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notices))
	require.Len(t, notices, 1)
	assert.Equal(t, "Cell already targeted", notices[0].Message)
}

func TestNoticeHistoryIsBounded(t *testing.T) {
	server := NewServer(newFakeSession(activeView()), nil, DefaultHubConfig())
	for i := 0; i < maxNotices+5; i++ {
		server.recordNotice(realtime.Notice{Kind: realtime.NoticeServerError, Message: string(rune('a' + i%26))})
	}
	notices := server.Notices()
	assert.Len(t, notices, maxNotices)
	assert.Equal(t, string(rune('a'+5)), notices[0].Message)
}

func TestHandleMoveExplicitType(t *testing.T) {
	session := newFakeSession(activeView())
	handler := NewServer(session, nil, DefaultHubConfig()).Handler()

	rec := postMove(t, handler, `{"index": 9, "type": "claim"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = postMove(t, handler, `{"index": 9, "type": "bomb"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "bomb")

	assert.Equal(t, []submittedMove{{index: 9, kind: events.Claim}}, session.submitted)
}

func TestHandleMoveRateLimited(t *testing.T) {
	session := newFakeSession(activeView())
	handler := NewServer(session, nil, DefaultHubConfig()).Handler()

	limited := 0
	for i := 0; i < gestureBurst*4; i++ {
		rec := postMove(t, handler, `{"index": 10, "button": "left"}`)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)
	assert.LessOrEqual(t, len(session.submitted), gestureBurst*4-limited)
}
