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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/adapters"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/adapters/cli"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/adapters/mongo"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/config"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/repositories"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/api"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/auth"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/hermes"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/wav"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/internal/websocket"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/usecase"
)

func main() {
	flags, err := config.ParseFlags("rhasspy-speakers-cli-hermes", os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyFlags(flags)

	// Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if flags.IssueToken != "" {
		if err := issueToken(cfg, flags.IssueToken); err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Audio server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = level

	return zapConfig.Build()
}

func issueToken(cfg *config.Config, clientID string) error {
	authenticator, err := auth.NewAuthenticator(cfg.Server.JWTSecret, 0)
	if err != nil {
		return err
	}

	token, expiresAt, err := authenticator.GenerateClientToken(clientID)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	playArgs, err := cli.SplitCommand(cfg.Audio.PlayCommand)
	if err != nil {
		return err
	}
	listArgs, err := cli.SplitCommand(cfg.Audio.ListCommand)
	if err != nil {
		return err
	}

	player := cli.NewCommandPlayer(playArgs, cfg.Audio.PlayTimeout, logger)

	var lister repositories.DeviceLister
	if len(listArgs) > 0 {
		lister = cli.NewCommandLister(listArgs, logger)
	}

	history, closeHistory, err := newHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	// Initialize usecase services
	playbackService := usecase.NewPlaybackService(player, wav.NewNormalizer(logger), history, cfg.Audio.Volume, logger)
	deviceService := usecase.NewDeviceService(lister, logger)

	if cfg.History.Retention > 0 {
		cleanup := usecase.NewHistoryCleanupService(history, cfg.History.Retention, cfg.History.CleanupInterval, logger)
		cleanup.Start()
		defer cleanup.Stop()
	}

	// Initialize the bus hub and dispatcher
	hub := websocket.NewHub(cfg.Server.QueueSize, logger)
	dispatcher := hermes.NewDispatcher(playbackService, deviceService, hub, cfg.Audio.SiteIDs, logger)

	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()

	go hub.Run(busCtx)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		hub.Dispatch(busCtx, dispatcher)
	}()

	var authenticator *auth.Authenticator
	if cfg.Server.JWTSecret != "" {
		authenticator, err = auth.NewAuthenticator(cfg.Server.JWTSecret, 0)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("No JWT secret configured, bus endpoint accepts anonymous clients")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api.InitRoutes(e, api.Dependencies{
		Hub:     hub,
		State:   playbackService,
		History: history,
		Auth:    authenticator,
		SiteIDs: cfg.Audio.SiteIDs,
		Logger:  logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Server.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Audio server started",
		zap.String("addr", cfg.Server.HTTPAddr),
		zap.Strings("siteIDs", cfg.Audio.SiteIDs),
		zap.Strings("playCommand", playArgs),
		zap.Strings("listCommand", listArgs),
		zap.Float64("volume", cfg.Audio.Volume))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Audio server is shutting down...")
	case runErr = <-serverErr:
		logger.Error("HTTP server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopBus()
	<-dispatchDone

	logger.Info("Audio server exited")
	return runErr
}

// newHistory selects MongoDB when a URI is configured and the in-memory
// repository otherwise
func newHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.PlaybackRepository, func(), error) {
	if cfg.MongoDB.URI == "" {
		return adapters.NewMemoryPlaybackRepository(cfg.History.MaxRecords), func() {}, nil
	}

	client, err := mongo.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	closeClient := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	}

	repo, err := mongo.NewPlaybackRepository(ctx, client.Database, logger)
	if err != nil {
		closeClient()
		return nil, nil, err
	}

	return repo, closeClient, nil
}
