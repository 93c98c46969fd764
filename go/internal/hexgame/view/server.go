package view

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/realtime"
)

const maxNotices = 20

// Gestures beyond this rate are refused before they reach the session.
const (
	gestureRate  = rate.Limit(10)
	gestureBurst = 5
)

// Session is the part of realtime.Client the view needs.
type Session interface {
	Current() realtime.View
	Updates() <-chan realtime.View
	Notices() <-chan realtime.Notice
	SubmitMove(ctx context.Context, index int, kind events.MoveKind) error
}

// StatsProvider exposes session counters.
type StatsProvider interface {
	Snapshot() realtime.MetricsSnapshot
}

// MoveRequest is a click on a cell. Type names the move directly and takes
// precedence over Button.
type MoveRequest struct {
	Index  int    `json:"index"`
	Button string `json:"button,omitempty"`
	Type   string `json:"type,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the board to a local browser and forwards its gestures.
type Server struct {
	session Session
	stats   StatsProvider
	hub     *Hub
	limiter *rate.Limiter

	mu      sync.RWMutex
	notices []realtime.Notice
}

// NewServer creates a view server for session. stats may be nil.
func NewServer(session Session, stats StatsProvider, hubConfig HubConfig) *Server {
	return &Server{
		session: session,
		stats:   stats,
		hub:     NewHub(hubConfig),
		limiter: rate.NewLimiter(gestureRate, gestureBurst),
	}
}

// Start follows the session's updates and notices until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Info().Msg("starting board view")

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		s.hub.Start(ctx)
	}()

	updates := s.session.Updates()
	notices := s.session.Notices()
	for {
		select {
		case <-ctx.Done():
			<-hubDone
			log.Info().Msg("board view stopped")
			return nil
		case v := <-updates:
			s.hub.Broadcast(Build(v))
		case n := <-notices:
			s.recordNotice(n)
		}
	}
}

func (s *Server) recordNotice(n realtime.Notice) {
	log.Info().Str("kind", string(n.Kind)).Str("message", n.Message).Msg("notice")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
}

// Notices returns the most recent notices, oldest first.
func (s *Server) Notices() []realtime.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]realtime.Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// RegisterRoutes registers the view routes with an HTTP mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/board", s.HandleGetBoard)
	mux.HandleFunc("GET /board.svg", s.HandleGetSVG)
	mux.HandleFunc("POST /api/moves", s.HandleMove)
	mux.HandleFunc("GET /api/notices", s.HandleGetNotices)
	mux.HandleFunc("GET /api/stats", s.HandleGetStats)
	mux.HandleFunc("GET /ws/board", s.HandleBoardSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

// Handler returns the routes wrapped with CORS and cleartext HTTP/2.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// NewHTTPServer returns an http.Server for the view listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// HandleGetBoard handles GET /api/board
func (s *Server) HandleGetBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Build(s.session.Current()))
}

// HandleGetSVG handles GET /board.svg
func (s *Server) HandleGetSVG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := RenderSVG(w, Build(s.session.Current())); err != nil {
		log.Error().Err(err).Msg("failed to write board svg")
	}
}

// HandleGetNotices handles GET /api/notices
func (s *Server) HandleGetNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Notices())
}

// HandleGetStats handles GET /api/stats
func (s *Server) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"service":    "hexfort-view",
		"browsers":   s.hub.Count(),
		"phase":      s.session.Current().Phase.String(),
		"notices":    len(s.Notices()),
		"session_id": s.session.Current().SessionID,
	}
	if s.stats != nil {
		stats["metrics"] = s.stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleBoardSocket handles GET /ws/board
func (s *Server) HandleBoardSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Upgrade(w, r, Build(s.session.Current())); err != nil {
		log.Error().Err(err).Msg("failed to upgrade browser connection")
		return
	}
}

// HandleMove handles POST /api/moves. A left click claims and a right click
// defends.
func (s *Server) HandleMove(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many moves, slow down"})
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	kind, err := req.moveKind()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.session.SubmitMove(r.Context(), req.Index, kind); err != nil {
		status, message := moveErrorResponse(err, s.session.Current())
		log.Debug().Err(err).Int("index", req.Index).Str("button", req.Button).Msg("gesture refused")
		writeJSON(w, status, errorResponse{Error: message})
		return
	}

	writeJSON(w, http.StatusAccepted, Build(s.session.Current()))
}

func (req MoveRequest) moveKind() (events.MoveKind, error) {
	if req.Type != "" {
		return events.ParseMoveKind(req.Type)
	}
	return MoveKindForButton(req.Button)
}

// MoveKindForButton maps a mouse button to a move.
func MoveKindForButton(button string) (events.MoveKind, error) {
	switch button {
	case "left", "":
		return events.Claim, nil
	case "right":
		return events.Defend, nil
	default:
		return "", errors.New("button must be left or right")
	}
}

func moveErrorResponse(err error, v realtime.View) (int, string) {
	switch {
	case errors.Is(err, realtime.ErrGameOver):
		return http.StatusConflict, v.Outcome()
	case errors.Is(err, realtime.ErrSessionEnded), errors.Is(err, realtime.ErrNotJoined):
		return http.StatusConflict, err.Error()
	case errors.Is(err, realtime.ErrInvalidTarget), errors.Is(err, realtime.ErrInvalidMove):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, realtime.ErrClosed):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
