package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/hexfort/go/clients/authority"
	"github.com/mcdev12/hexfort/go/internal/hexgame/config"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/transport"
)

func fakeLobby(t *testing.T) *authority.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+authority.CreateGameEndpoint, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"gameCode": "ABC123", "hostId": "host-1"})
	})
	mux.HandleFunc("POST "+authority.JoinGameEndpoint, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			GameCode string `json:"gameCode"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.GameCode != "ABC123" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Game not found"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"playerId": "player-1"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return authority.NewClient(server.URL)
}

func TestResolveCredentials(t *testing.T) {
	api := fakeLobby(t)
	ctx := context.Background()

	creds, err := resolveCredentials(ctx, api, []string{"host"})
	require.NoError(t, err)
	assert.Equal(t, credentials{gameCode: "ABC123", playerID: "host-1", side: events.Host}, creds)

	creds, err = resolveCredentials(ctx, api, []string{"join", "ABC123"})
	require.NoError(t, err)
	assert.Equal(t, credentials{gameCode: "ABC123", playerID: "player-1", side: events.Player}, creds)

	creds, err = resolveCredentials(ctx, api, []string{"play", "XYZ", "p-9", "player"})
	require.NoError(t, err)
	assert.Equal(t, credentials{gameCode: "XYZ", playerID: "p-9", side: events.Player}, creds)

	_, err = resolveCredentials(ctx, api, []string{"join", "NOPE"})
	var rejected *authority.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Game not found", rejected.Reason)

	_, err = resolveCredentials(ctx, api, []string{"play", "XYZ", "p-9", "spectator"})
	assert.Error(t, err)

	for _, args := range [][]string{{"host", "extra"}, {"join"}, {"play", "XYZ"}, {"dance"}} {
		_, err = resolveCredentials(ctx, api, args)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestNewChannel(t *testing.T) {
	cfg := config.Default()
	ch, err := newChannel(cfg)
	require.NoError(t, err)
	assert.IsType(t, &transport.WebSocketChannel{}, ch)

	cfg.Transport = config.TransportNATS
	ch, err = newChannel(cfg)
	require.NoError(t, err)
	assert.IsType(t, &transport.NATSChannel{}, ch)

	cfg = config.Default()
	cfg.AuthorityURL = "ftp://example.com"
	_, err = newChannel(cfg)
	assert.Error(t, err)
}

func TestRunRequiresCommand(t *testing.T) {
	assert.ErrorIs(t, run(context.Background(), config.Default(), nil), errUsage)
}
