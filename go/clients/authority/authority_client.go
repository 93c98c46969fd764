package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/hexfort/go/clients"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

// RejectedError is returned when the authority refuses a request. Reason is
// the human-readable explanation it supplied.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by authority (%d): %s", e.StatusCode, e.Reason)
}

// CreateGameResponse is returned by /game/create.
type CreateGameResponse struct {
	GameCode string `json:"gameCode"`
	HostID   string `json:"hostId"`
}

// JoinGameResponse is returned by /game/join.
type JoinGameResponse struct {
	PlayerID string `json:"playerId"`
}

// MoveRequest is the body of /game/move.
type MoveRequest struct {
	GameCode string          `json:"gameCode"`
	PlayerID string          `json:"playerId"`
	Index    int             `json:"index"`
	MoveType events.MoveKind `json:"moveType"`
}

type joinGameRequest struct {
	GameCode string `json:"gameCode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the game authority over HTTP.
type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}
	c.SetHeader("User-Agent", UserAgent)
	return c
}

// SetSessionID tags every later request with the realtime session id.
func (c *Client) SetSessionID(id string) {
	c.SetHeader(SessionIDHeader, id)
}

// CreateGame asks the authority for a new game hosted by the caller.
func (c *Client) CreateGame(ctx context.Context) (*CreateGameResponse, error) {
	var resp CreateGameResponse
	if err := c.PostJSON(ctx, CreateGameEndpoint, nil, &resp, nil); err != nil {
		return nil, convertError("create game", err)
	}
	if resp.GameCode == "" || resp.HostID == "" {
		return nil, errors.New("create game: response missing gameCode or hostId")
	}
	return &resp, nil
}

// JoinGame joins an existing game as the second player.
func (c *Client) JoinGame(ctx context.Context, gameCode string) (*JoinGameResponse, error) {
	var resp JoinGameResponse
	if err := c.PostJSON(ctx, JoinGameEndpoint, joinGameRequest{GameCode: gameCode}, &resp, nil); err != nil {
		return nil, convertError("join game", err)
	}
	if resp.PlayerID == "" {
		return nil, errors.New("join game: response missing playerId")
	}
	return &resp, nil
}

// SubmitMove records a pending move. A nil error means the authority accepted it.
func (c *Client) SubmitMove(ctx context.Context, req MoveRequest) error {
	requestID := uuid.New().String()

	log.Debug().
		Str("request_id", requestID).
		Str("game_code", req.GameCode).
		Int("index", req.Index).
		Str("move_type", string(req.MoveType)).
		Msg("submitting move")

	err := c.PostJSON(ctx, MoveEndpoint, req, nil, map[string]string{RequestIDHeader: requestID})
	if err != nil {
		return convertError("submit move", err)
	}
	return nil
}

// convertError turns non-2xx answers into RejectedError and wraps everything else.
func convertError(op string, err error) error {
	var statusErr *clients.StatusError
	if !errors.As(err, &statusErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	reason := strings.TrimSpace(string(statusErr.Body))
	var body errorResponse
	if jsonErr := json.Unmarshal(statusErr.Body, &body); jsonErr == nil && body.Error != "" {
		reason = body.Error
	}
	if reason == "" {
		reason = fmt.Sprintf("%s failed", op)
	}
	return &RejectedError{StatusCode: statusErr.StatusCode, Reason: reason}
}
