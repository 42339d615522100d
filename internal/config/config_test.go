package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tia-game/titans-server-go/internal/game"
	"github.com/tia-game/titans-server-go/internal/game/board"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, 30*time.Second, cfg.Timers.Turn)
	assert.Equal(t, 600*time.Second, cfg.Timers.Game)
	assert.Equal(t, "memory", cfg.Leaderboard.Backend)
	assert.Equal(t, "titans_leaderboard", cfg.Leaderboard.Namespace)
	assert.Equal(t, 10, cfg.Leaderboard.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)

	r, err := cfg.Game.Rules()
	require.NoError(t, err)
	assert.Equal(t, game.DefaultRules(), r)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    address: ":9999"
game:
  titans_per_player: 3
  initial_player: blue
  initial_unlocked: [outer, middle]
timers:
  turn: 45s
logging:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTP.Address)
	assert.Equal(t, 45*time.Second, cfg.Timers.Turn)
	assert.Equal(t, "json", cfg.Logging.Format)

	r, err := cfg.Game.Rules()
	require.NoError(t, err)
	assert.Equal(t, 3, r.TitansPerPlayer)
	assert.Equal(t, game.Blue, r.InitialPlayer)
	assert.Equal(t, []board.Circuit{board.Outer, board.Middle}, r.InitialUnlocked)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TITANS_LEADERBOARD_MAX_ENTRIES", "5")
	t.Setenv("TITANS_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Leaderboard.MaxEntries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown backend":   "leaderboard:\n  backend: redis\n",
		"postgres no dsn":   "leaderboard:\n  backend: postgres\n",
		"wrong circuits":    "game:\n  circuits: 4\n",
		"bad replay speed":  "replay:\n  speed: warp\n",
		"short turn timer":  "timers:\n  turn: 10ms\n",
		"empty leaderboard": "leaderboard:\n  max_entries: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, IsInvalid(err), "got %v", err)
		})
	}
}

func TestGameRulesRejectsBadValues(t *testing.T) {
	g := GameConfig{
		TitansPerPlayer:  4,
		WinningScore:     20,
		EliminationBonus: 2,
		InitialUnlocked:  []string{"centre"},
		InitialPlayer:    "red",
	}
	_, err := g.Rules()
	assert.True(t, IsInvalid(err))

	g.InitialUnlocked = []string{"outer"}
	g.InitialPlayer = "green"
	_, err = g.Rules()
	assert.True(t, IsInvalid(err))

	g.InitialPlayer = "red"
	g.TitansPerPlayer = 12
	_, err = g.Rules()
	assert.True(t, IsInvalid(err))
}
