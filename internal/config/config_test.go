package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/siege/internal/game/world"
)

func validConfig() Config {
	return Config{
		World: WorldConfig{
			MaxTotalPlayers: 8,
			TotalRooms:      2,
			MaxRoomPlayers:  4,
			RoomRows:        5,
			RoomCols:        5,
		},
		Rules: RulesConfig{
			MaxPlayerStrength:   100,
			MaxBuildingStrength: 100,
			AttackDamage:        10,
			Elimination:         "respawn",
			OccupiedMove:        "block",
			Snapshot:            "join",
		},
		TCP: TCPConfig{
			Host:         "0.0.0.0",
			Port:         7000,
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 10 * time.Second,
			MaxFrame:     65536,
		},
		HTTP:    HTTPConfig{Host: "0.0.0.0", Port: 7080},
		GRPC:    GRPCConfig{Host: "127.0.0.1", Port: 50051},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Session: SessionConfig{OutboundBuffer: 64},
	}
}

const minimalYAML = `
world:
  max_total_players: 6
  total_rooms: 2
  max_room_players: 3
  room_rows: 5
  room_cols: 7
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "siege.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestAddrs(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:7000", cfg.TCP.Addr())
	assert.Equal(t, "0.0.0.0:7080", cfg.HTTP.Addr())
	assert.Equal(t, "127.0.0.1:50051", cfg.GRPC.Addr())
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.World.MaxTotalPlayers)
	assert.Equal(t, 7, cfg.World.RoomCols)
	assert.Equal(t, 100, cfg.Rules.MaxPlayerStrength)
	assert.Equal(t, 10, cfg.Rules.AttackDamage)
	assert.Equal(t, "respawn", cfg.Rules.Elimination)
	assert.Equal(t, "block", cfg.Rules.OccupiedMove)
	assert.Equal(t, "join", cfg.Rules.Snapshot)
	assert.Zero(t, cfg.Rules.SnapshotInterval)
	assert.Equal(t, 7000, cfg.TCP.Port)
	assert.Equal(t, 5*time.Minute, cfg.TCP.ReadTimeout)
	assert.Equal(t, 64, cfg.Session.OutboundBuffer)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
rules:
  max_player_strength: 50
  attack_damage: 7
  type_damage:
    archer: 12
  spawn_row: 2
  spawn_col: 3
  elimination: remove
  occupied_move: swap
  snapshot: change
  snapshot_interval: 2s
tcp:
  port: 7001
  max_frame: 4096
logging:
  level: debug
  format: console
`))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Rules.MaxPlayerStrength)
	assert.Equal(t, map[string]int{"archer": 12}, cfg.Rules.TypeDamage)
	assert.Equal(t, "change", cfg.Rules.Snapshot)
	assert.Equal(t, 2*time.Second, cfg.Rules.SnapshotInterval)
	assert.Equal(t, 4096, cfg.TCP.MaxFrame)

	lc := cfg.LobbyConfig()
	assert.Equal(t, 3, lc.MaxRoomPlayers)
	assert.Equal(t, world.Location{Row: 2, Col: 3}, lc.Rules.Spawn)
	assert.Equal(t, world.EliminateRemove, lc.Rules.Elimination)
	assert.Equal(t, world.MoveSwap, lc.Rules.OccupiedMove)
	assert.NoError(t, lc.Validate())
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoad_MissingWorldKeyIsFatal(t *testing.T) {
	_, err := Load(writeConfig(t, `
world:
  max_total_players: 6
  total_rooms: 2
  max_room_players: 3
  room_rows: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world.room_cols is required")
}

func TestLoad_NonNumericWorldKeyIsFatal(t *testing.T) {
	_, err := Load(writeConfig(t, `
world:
  max_total_players: lots
  total_rooms: 2
  max_room_players: 3
  room_rows: 5
  room_cols: 1.5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world.max_total_players")
	assert.Contains(t, err.Error(), "world.room_cols")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SIEGE_WORLD_TOTAL_ROOMS", "9")
	t.Setenv("SIEGE_RULES_ELIMINATION", "remove")
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.World.TotalRooms)
	assert.Equal(t, "remove", cfg.Rules.Elimination)
}

func TestLoad_WorldFromEnvOnly(t *testing.T) {
	t.Setenv("SIEGE_WORLD_MAX_TOTAL_PLAYERS", "4")
	t.Setenv("SIEGE_WORLD_TOTAL_ROOMS", "2")
	t.Setenv("SIEGE_WORLD_MAX_ROOM_PLAYERS", "2")
	t.Setenv("SIEGE_WORLD_ROOM_ROWS", "5")
	t.Setenv("SIEGE_WORLD_ROOM_COLS", "5")
	cfg, err := Load(writeConfig(t, "logging:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.World.MaxTotalPlayers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SIEGE_TEST_DOTENV=from-file\n"), 0644))
	t.Setenv("SIEGE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SIEGE_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("SIEGE_TEST_DOTENV"))
}

func TestValidateWorld(t *testing.T) {
	cfg := validConfig()
	cfg.World.TotalRooms = 0
	cfg.World.RoomRows = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world.total_rooms")
	assert.Contains(t, err.Error(), "world.room_rows")

	cfg = validConfig()
	cfg.World.RoomCols = world.MaxGridSide + 1
	cfg.World.MaxRoomPlayers = world.MaxRoomCapacity + 1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world.room_cols")
	assert.Contains(t, err.Error(), "world.max_room_players")
}

func TestValidateRulesPolicies(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Rules.Elimination = "explode" },
		func(c *Config) { c.Rules.OccupiedMove = "displace" },
		func(c *Config) { c.Rules.Snapshot = "periodic" },
		func(c *Config) { c.Rules.SpawnRow = 5 },
		func(c *Config) { c.Rules.SpawnCol = -1 },
		func(c *Config) { c.Rules.MaxBuildingStrength = 0 },
		func(c *Config) { c.Rules.TypeDamage = map[string]int{"x": -1} },
		func(c *Config) { c.Rules.SnapshotInterval = -time.Second },
	} {
		cfg := validConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate())
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingRotation(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.File = "siege.log"
	assert.Error(t, cfg.Validate())
	cfg.Logging.MaxSizeMB = 10
	assert.NoError(t, cfg.Validate())
}

func TestValidateTCP(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.MaxFrame = 1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TCP.ReadTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateSession(t *testing.T) {
	cfg := validConfig()
	cfg.Session.OutboundBuffer = 0
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.GRPC.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.TCP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertySpawnInsideGrid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.World.RoomRows = rapid.IntRange(1, 20).Draw(t, "rows")
		cfg.World.RoomCols = rapid.IntRange(1, 20).Draw(t, "cols")
		cfg.Rules.SpawnRow = rapid.IntRange(-5, 25).Draw(t, "spawn_row")
		cfg.Rules.SpawnCol = rapid.IntRange(-5, 25).Draw(t, "spawn_col")
		inside := cfg.Rules.SpawnRow >= 0 && cfg.Rules.SpawnRow < cfg.World.RoomRows &&
			cfg.Rules.SpawnCol >= 0 && cfg.Rules.SpawnCol < cfg.World.RoomCols
		err := cfg.Validate()
		if inside != (err == nil) {
			t.Fatalf("spawn (%d,%d) in %dx%d: inside=%v err=%v",
				cfg.Rules.SpawnRow, cfg.Rules.SpawnCol, cfg.World.RoomRows, cfg.World.RoomCols, inside, err)
		}
	})
}
