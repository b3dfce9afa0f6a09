package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/logging"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/player"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: carevoice-player <command>

commands:
  pair CODE   exchange a six-digit pairing code for this device's identity
  run         play scheduled and emergency announcements (default)
`)
}

func main() {
	configPath := os.Getenv("PLAYER_CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	os.Exit(execute(configPath, os.Args[1:]))
}

// execute runs one command and returns the process exit code. Deferred
// cleanup, closing the local cache in particular, has run by the time it
// returns.
func execute(configPath string, args []string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		return 1
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "carevoice-player")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch {
	case cmd == "pair" && len(args) == 1, cmd == "run":
	default:
		usage()
		return 2
	}

	if cfg.Player.BackendURL == "" {
		logger.Error("player.backend_url is required")
		return 1
	}

	cache, err := player.OpenCache(cfg.Player.DataDir)
	if err != nil {
		logger.Error("failed to open local cache", zap.Error(err))
		return 1
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("failed to close local cache", zap.Error(err))
		}
	}()

	client := player.NewClient(cfg.Player.BackendURL, cfg.Player.RequestTimeout, cfg.Player.Breaker, logger)

	if cmd == "pair" {
		err = pair(client, cache, logger, args[0])
	} else {
		err = run(&cfg.Player, client, cache, logger)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
		return 1
	}
	return 0
}

func pair(client *player.Client, cache *player.Cache, logger *zap.Logger, code string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	paired, err := client.Pair(ctx, code)
	switch {
	case errors.Is(err, player.ErrCodeNotFound):
		return errors.New("invalid pairing code, check the code shown in the admin console")
	case errors.Is(err, player.ErrCodeExpired):
		return errors.New("pairing code has expired, generate a new one in the admin console")
	case err != nil:
		return err
	}

	identity := player.IdentityFromPairing(paired, time.Now())
	if err := cache.SaveIdentity(identity); err != nil {
		return err
	}

	logger.Info("device paired",
		zap.String("device_id", identity.DeviceID),
		zap.String("device", identity.DeviceName),
		zap.String("room", identity.RoomName),
		zap.String("organization", identity.OrganizationName))
	return nil
}

func run(cfg *config.PlayerConfig, client *player.Client, cache *player.Cache, logger *zap.Logger) error {
	identity, err := cache.Identity()
	if err != nil {
		return fmt.Errorf("%w: run 'carevoice-player pair CODE' first", err)
	}

	runner, err := player.NewRunner(cfg, *identity, client, cache, player.NewCommandSpeaker(cfg.Audio), orgtime.SystemClock{}, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	runner.Run(ctx)
	return nil
}
