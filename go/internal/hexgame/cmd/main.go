package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/hexfort/go/clients/authority"
	"github.com/mcdev12/hexfort/go/internal/hexgame/config"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
	"github.com/mcdev12/hexfort/go/internal/hexgame/realtime"
	"github.com/mcdev12/hexfort/go/internal/hexgame/transport"
	"github.com/mcdev12/hexfort/go/internal/hexgame/view"
)

const usage = `usage: hexfort [-config file] <command> [args]

commands:
  host                        create a game and play it as host
  join <code>                 join a game as player
  play <code> <player-id> <side>
                              resume a session with known credentials
`

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	configPath := flag.String("config", "", "YAML config file (defaults to $"+config.ConfigPathEnv+")")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("hexfort exited")
	}
	log.Info().Msg("hexfort shutdown complete")
}

var errUsage = errors.New("usage")

type credentials struct {
	gameCode string
	playerID string
	side     events.Side
}

func run(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	api := authority.NewClient(cfg.AuthorityURL)
	api.SetTimeout(cfg.RequestTimeout)

	creds, err := resolveCredentials(ctx, api, args)
	if err != nil {
		return err
	}
	log.Info().
		Str("game_code", creds.gameCode).
		Str("player_id", creds.playerID).
		Str("side", string(creds.side)).
		Msg("starting session")

	channel, err := newChannel(cfg)
	if err != nil {
		return err
	}

	metrics := realtime.NewCounterMetrics()
	client, err := realtime.NewClient(realtime.Config{
		GameCode:      creds.gameCode,
		PlayerID:      creds.playerID,
		Side:          creds.side,
		TickInterval:  cfg.TickInterval,
		SubmitTimeout: cfg.RequestTimeout,
	}, channel, api, realtime.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	api.SetSessionID(client.SessionID())

	return serve(ctx, cfg, client, metrics)
}

// resolveCredentials turns the command line into session credentials,
// creating or joining a game on the authority when asked to.
func resolveCredentials(ctx context.Context, api *authority.Client, args []string) (credentials, error) {
	switch args[0] {
	case "host":
		if len(args) != 1 {
			return credentials{}, errUsage
		}
		game, err := api.CreateGame(ctx)
		if err != nil {
			return credentials{}, fmt.Errorf("create game: %w", err)
		}
		fmt.Printf("Game created. Share this code: %s\n", game.GameCode)
		return credentials{gameCode: game.GameCode, playerID: game.HostID, side: events.Host}, nil

	case "join":
		if len(args) != 2 {
			return credentials{}, errUsage
		}
		joined, err := api.JoinGame(ctx, args[1])
		if err != nil {
			return credentials{}, fmt.Errorf("join game: %w", err)
		}
		return credentials{gameCode: args[1], playerID: joined.PlayerID, side: events.Player}, nil

	case "play":
		if len(args) != 4 {
			return credentials{}, errUsage
		}
		side, err := events.ParseSide(args[3])
		if err != nil {
			return credentials{}, err
		}
		return credentials{gameCode: args[1], playerID: args[2], side: side}, nil

	default:
		return credentials{}, errUsage
	}
}

func newChannel(cfg config.Config) (realtime.Channel, error) {
	switch cfg.Transport {
	case config.TransportNATS:
		natsCfg := transport.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		natsCfg.JoinTimeout = cfg.RequestTimeout
		return transport.NewNATSChannel(natsCfg), nil

	default:
		wsURL, err := transport.SocketURL(cfg.AuthorityURL, cfg.SocketPath)
		if err != nil {
			return nil, err
		}
		wsCfg := transport.DefaultWebSocketConfig()
		wsCfg.URL = wsURL
		wsCfg.HandshakeTimeout = cfg.RequestTimeout
		return transport.NewWebSocketChannel(wsCfg), nil
	}
}

// serve runs the session and the board view until the session fails or a
// signal arrives.
func serve(ctx context.Context, cfg config.Config, client *realtime.Client, metrics *realtime.CounterMetrics) error {
	board := view.NewServer(client, metrics, view.DefaultHubConfig())
	server := board.NewHTTPServer(cfg.ViewAddr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.Run(ctx)
	})

	g.Go(func() error {
		return board.Start(ctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("board view listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("view server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("view server shutdown failed")
		}
		return nil
	})

	return g.Wait()
}
