package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tia-game/titans-server-go/internal/config"
	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/leaderboard"
	"github.com/tia-game/titans-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "", "path to configuration file (default: search xdg config dirs)")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Titans server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured; leaderboard reset disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize rule engine
	rules, err := cfg.Game.Rules()
	if err != nil {
		logger.Fatal("invalid game rules", zap.Error(err))
	}
	engine, err := game.NewEngine(board.Standard(), rules, logger)
	if err != nil {
		logger.Fatal("failed to build rule engine", zap.Error(err))
	}
	logger.Info("rule engine initialized",
		zap.Int("titans_per_player", rules.TitansPerPlayer),
		zap.Int("winning_score", rules.WinningScore),
		zap.Int("elimination_bonus", rules.EliminationBonus),
	)

	// Initialize leaderboard storage
	store, err := openStore(ctx, cfg.Leaderboard)
	if err != nil {
		logger.Fatal("failed to open leaderboard store",
			zap.String("backend", cfg.Leaderboard.Backend),
			zap.Error(err),
		)
	}
	defer store.Close()

	scores := leaderboard.New(store, leaderboard.Options{
		Namespace:  cfg.Leaderboard.Namespace,
		MaxEntries: cfg.Leaderboard.MaxEntries,
	}, logger)
	logger.Info("leaderboard initialized",
		zap.String("backend", cfg.Leaderboard.Backend),
		zap.String("namespace", cfg.Leaderboard.Namespace),
		zap.Int("max_entries", scores.MaxEntries()),
	)

	// Initialize replay archive
	var archive *game.ReplayArchive
	if cfg.Replay.Archive {
		archive = game.NewReplayArchive(cfg.Replay.Directory, logger)
		logger.Info("replay archive enabled", zap.String("directory", cfg.Replay.Directory))
	}
	speed, err := game.ParseSpeed(cfg.Replay.Speed)
	if err != nil {
		logger.Fatal("invalid replay speed", zap.Error(err))
	}

	titans := server.New(engine, scores, archive, server.Options{
		TimersEnabled:     cfg.Timers.Enabled,
		TurnTimeout:       cfg.Timers.Turn,
		GameTimeout:       cfg.Timers.Game,
		ReplaySpeed:       speed,
		MaxGames:          cfg.Server.MaxGames,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
	}, logger)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	health := titans.RegisterGRPC(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start HTTP and WebSocket server
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTP.Address,
		Handler:      titans.Handler(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if httpErr := httpServer.ListenAndServe(); httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(httpErr))
		}
	}()

	logger.Info("Titans server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.Bool("timers", cfg.Timers.Enabled),
		zap.Int("max_games", cfg.Server.MaxGames),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	health.SetServingStatus(server.GameServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	titans.Close()
	grpcServer.GracefulStop()

	logger.Info("Titans server stopped")
}

// openStore opens the leaderboard backend named in the configuration.
func openStore(ctx context.Context, cfg config.LeaderboardConfig) (leaderboard.Store, error) {
	switch cfg.Backend {
	case "badger":
		return leaderboard.NewBadgerStore(cfg.BadgerDir)
	case "postgres":
		return leaderboard.NewPostgresStore(ctx, cfg.DSN)
	default:
		return leaderboard.NewMemoryStore(), nil
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
