// Package config loads server settings from a YAML file, TITANS_* environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// DefaultFile is looked up in the xdg config directories when no path is given.
const DefaultFile = "titans/config.yaml"

// InvalidConfig reports a setting that failed validation.
type InvalidConfig struct {
	err string
}

func (e *InvalidConfig) Error() string {
	return fmt.Sprintf("config error: %s", e.err)
}

// Config is the complete server configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Game        GameConfig        `mapstructure:"game"`
	Timers      TimerConfig       `mapstructure:"timers"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Replay      ReplayConfig      `mapstructure:"replay"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	HTTP            HTTPConfig    `mapstructure:"http"`
	GRPC            GRPCConfig    `mapstructure:"grpc"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxGames        int           `mapstructure:"max_games"`
}

type HTTPConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// GameConfig is the rule set every new game starts with.
type GameConfig struct {
	Circuits         int      `mapstructure:"circuits"`
	NodesPerCircuit  int      `mapstructure:"nodes_per_circuit"`
	TitansPerPlayer  int      `mapstructure:"titans_per_player"`
	WinningScore     int      `mapstructure:"winning_score"`
	EliminationBonus int      `mapstructure:"elimination_bonus"`
	InitialUnlocked  []string `mapstructure:"initial_unlocked"`
	InitialPlayer    string   `mapstructure:"initial_player"`
}

type TimerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Turn    time.Duration `mapstructure:"turn"`
	Game    time.Duration `mapstructure:"game"`
}

type LeaderboardConfig struct {
	Backend    string `mapstructure:"backend"` // memory, badger or postgres
	Namespace  string `mapstructure:"namespace"`
	MaxEntries int    `mapstructure:"max_entries"`
	BadgerDir  string `mapstructure:"badger_dir"`
	DSN        string `mapstructure:"dsn"`
}

type ReplayConfig struct {
	Archive   bool   `mapstructure:"archive"`
	Directory string `mapstructure:"directory"`
	Speed     string `mapstructure:"speed"`
}

type AuthConfig struct {
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads path, or the xdg default file when path is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TITANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if found, err := xdg.SearchConfigFile(DefaultFile); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.write_timeout", 10*time.Second)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_games", 1000)

	v.SetDefault("game.circuits", 3)
	v.SetDefault("game.nodes_per_circuit", 6)
	v.SetDefault("game.titans_per_player", 4)
	v.SetDefault("game.winning_score", 20)
	v.SetDefault("game.elimination_bonus", 2)
	v.SetDefault("game.initial_unlocked", []string{"outer"})
	v.SetDefault("game.initial_player", "red")

	v.SetDefault("timers.enabled", true)
	v.SetDefault("timers.turn", 30*time.Second)
	v.SetDefault("timers.game", 600*time.Second)

	v.SetDefault("leaderboard.backend", "memory")
	v.SetDefault("leaderboard.namespace", "titans_leaderboard")
	v.SetDefault("leaderboard.max_entries", 10)
	v.SetDefault("leaderboard.badger_dir", filepath.Join(xdg.DataHome, "titans", "leaderboard"))
	v.SetDefault("leaderboard.dsn", "")

	v.SetDefault("replay.archive", false)
	v.SetDefault("replay.directory", filepath.Join(xdg.DataHome, "titans", "replays"))
	v.SetDefault("replay.speed", "normal")

	v.SetDefault("auth.admin_password_hash", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Server.HTTP.Address == "":
		return &InvalidConfig{"server.http.address must be set"}
	case c.Server.GRPC.Address == "":
		return &InvalidConfig{"server.grpc.address must be set"}
	case c.Server.MaxGames <= 0:
		return &InvalidConfig{"server.max_games must be positive"}
	case c.Game.Circuits != 3:
		return &InvalidConfig{fmt.Sprintf("game.circuits must be 3, got %d", c.Game.Circuits)}
	case c.Game.NodesPerCircuit != 6:
		return &InvalidConfig{fmt.Sprintf("game.nodes_per_circuit must be 6, got %d", c.Game.NodesPerCircuit)}
	case c.Timers.Enabled && (c.Timers.Turn < time.Second || c.Timers.Game < time.Second):
		return &InvalidConfig{"timer durations must be at least one second"}
	case c.Leaderboard.MaxEntries <= 0:
		return &InvalidConfig{"leaderboard.max_entries must be positive"}
	case c.Leaderboard.Namespace == "":
		return &InvalidConfig{"leaderboard.namespace must be set"}
	}

	switch c.Leaderboard.Backend {
	case "memory":
	case "badger":
		if c.Leaderboard.BadgerDir == "" {
			return &InvalidConfig{"leaderboard.badger_dir must be set for the badger backend"}
		}
	case "postgres":
		if c.Leaderboard.DSN == "" {
			return &InvalidConfig{"leaderboard.dsn must be set for the postgres backend"}
		}
	default:
		return &InvalidConfig{fmt.Sprintf("unknown leaderboard backend %q", c.Leaderboard.Backend)}
	}

	switch c.Replay.Speed {
	case "slow", "normal", "fast":
	default:
		return &InvalidConfig{fmt.Sprintf("unknown replay speed %q", c.Replay.Speed)}
	}

	if c.Replay.Archive && c.Replay.Directory == "" {
		return &InvalidConfig{"replay.directory must be set when archiving is enabled"}
	}
	return nil
}

// IsInvalid reports whether err came from Validate.
func IsInvalid(err error) bool {
	var target *InvalidConfig
	return errors.As(err, &target)
}
