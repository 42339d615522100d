// Command titans-script plays a notation script against a fresh game and
// reports how it ended.
//
//	titans-script [-config file] [-continue] [-v] game.tia
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tia-game/titans-server-go/internal/config"
	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/board"
	"github.com/tia-game/titans-server-go/internal/game/rules"
	"github.com/tia-game/titans-server-go/internal/notation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath      = flag.String("config", "", "path to configuration file (default: search xdg config dirs)")
	continueOnError = flag.Bool("continue", false, "keep going after a rejected command")
	verbose         = flag.Bool("v", false, "log every game event")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: titans-script [-config file] [-continue] [-v] script")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !*verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	src, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("failed to read script", zap.String("path", path), zap.Error(err))
	}
	script, err := notation.Parse(path, string(src))
	if err != nil {
		logger.Fatal("failed to parse script", zap.Error(err))
	}

	r, err := cfg.Game.Rules()
	if err != nil {
		logger.Fatal("invalid game rules", zap.Error(err))
	}
	engine, err := game.NewEngine(board.Standard(), r, zap.NewNop())
	if err != nil {
		logger.Fatal("failed to build rule engine", zap.Error(err))
	}

	bus := rules.NewEventBus()
	bus.Subscribe(func(evt rules.Event) {
		logger.Debug("event",
			zap.String("type", string(evt.Type)),
			zap.String("player", evt.Player),
			zap.String("node", evt.Node),
			zap.String("target", evt.Target),
			zap.Int("amount", evt.Amount),
			zap.String("message", evt.Message),
		)
	})
	session := game.NewSession("script", engine, bus, zap.NewNop())

	runner := notation.NewRunner(logger)
	runner.ContinueOnError = *continueOnError
	runErr := runner.Run(session, script)

	st := session.View()
	fields := []zap.Field{
		zap.Int("commands", len(script.Commands)),
		zap.String("phase", st.Phase.String()),
		zap.String("current_player", st.CurrentPlayer.String()),
		zap.Int("red_score", st.Score(game.Red)),
		zap.Int("blue_score", st.Score(game.Blue)),
		zap.String("status", session.Status()),
	}
	if out := st.Outcome; out != nil {
		fields = append(fields,
			zap.String("winner", out.Winner.String()),
			zap.Bool("draw", out.Draw),
			zap.String("reason", out.Reason.String()),
		)
	}
	if sum, err := session.Checksum(); err == nil {
		fields = append(fields, zap.String("checksum", sum))
	}
	logger.Info("script finished", fields...)

	if runErr != nil {
		logger.Error("script rejected", zap.Error(runErr))
		os.Exit(1)
	}
}
