// Package config provides Viper-based configuration loading for the siege server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cory-johannsen/siege/internal/game/world"
)

// EnvPrefix prefixes every environment override, e.g. SIEGE_WORLD_TOTAL_ROOMS.
const EnvPrefix = "SIEGE"

// requiredWorldKeys have no defaults: the server cannot start without them.
var requiredWorldKeys = []string{
	"world.max_total_players",
	"world.total_rooms",
	"world.max_room_players",
	"world.room_rows",
	"world.room_cols",
}

// WorldConfig holds the fixed world dimensions.
type WorldConfig struct {
	MaxTotalPlayers int `mapstructure:"max_total_players"`
	TotalRooms      int `mapstructure:"total_rooms"`
	MaxRoomPlayers  int `mapstructure:"max_room_players"`
	RoomRows        int `mapstructure:"room_rows"`
	RoomCols        int `mapstructure:"room_cols"`
}

// RulesConfig holds gameplay rules shared by every room.
type RulesConfig struct {
	MaxPlayerStrength   int `mapstructure:"max_player_strength"`
	MaxBuildingStrength int `mapstructure:"max_building_strength"`
	// AttackDamage is the damage dealt by a player type without a TypeDamage entry.
	AttackDamage int `mapstructure:"attack_damage"`
	// TypeDamage maps player type to attack damage. Viper lowercases map keys,
	// so lookups must use the lowercased player type.
	TypeDamage map[string]int `mapstructure:"type_damage"`
	SpawnRow   int            `mapstructure:"spawn_row"`
	SpawnCol   int            `mapstructure:"spawn_col"`
	// Elimination is "respawn" or "remove".
	Elimination string `mapstructure:"elimination"`
	// OccupiedMove is "block" or "swap".
	OccupiedMove string `mapstructure:"occupied_move"`
	// Snapshot is "join" or "change".
	Snapshot string `mapstructure:"snapshot"`
	// SnapshotInterval, when positive, also sends every occupied room a
	// Snapshot on this period.
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	// LayoutFile is an optional YAML file of building placements.
	LayoutFile string `mapstructure:"layout_file"`
}

// WorldRules converts the rules section to room rules.
func (r RulesConfig) WorldRules() world.Rules {
	return world.Rules{
		MaxPlayerStrength:   r.MaxPlayerStrength,
		MaxBuildingStrength: r.MaxBuildingStrength,
		Spawn:               world.Location{Row: r.SpawnRow, Col: r.SpawnCol},
		Elimination:         world.EliminationPolicy(r.Elimination),
		OccupiedMove:        world.OccupiedMovePolicy(r.OccupiedMove),
	}
}

// TCPConfig holds the framed TCP acceptor settings.
type TCPConfig struct {
	// Host is the bind address for the TCP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-frame read deadline. Zero disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxFrame bounds the length prefix of an inbound frame.
	MaxFrame int `mapstructure:"max_frame"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TCPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// HTTPConfig holds the websocket and status endpoint settings.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// GRPCConfig holds the gRPC stream transport settings.
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File, when set, additionally writes logs to a rotating file.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SessionConfig holds per-session settings.
type SessionConfig struct {
	// OutboundBuffer is the depth of each session's outbound frame queue.
	OutboundBuffer int `mapstructure:"outbound_buffer"`
}

// Config is the top-level application configuration.
type Config struct {
	World   WorldConfig   `mapstructure:"world"`
	Rules   RulesConfig   `mapstructure:"rules"`
	TCP     TCPConfig     `mapstructure:"tcp"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Logging LoggingConfig `mapstructure:"logging"`
	Session SessionConfig `mapstructure:"session"`
}

// LobbyConfig converts the world and rules sections to a lobby configuration.
func (c Config) LobbyConfig() world.LobbyConfig {
	return world.LobbyConfig{
		MaxTotalPlayers: c.World.MaxTotalPlayers,
		TotalRooms:      c.World.TotalRooms,
		MaxRoomPlayers:  c.World.MaxRoomPlayers,
		RoomRows:        c.World.RoomRows,
		RoomCols:        c.World.RoomCols,
		Rules:           c.Rules.WorldRules(),
	}
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateWorld(c.World),
		validateRules(c.Rules, c.World),
		validatePort("tcp", c.TCP.Port),
		validateTCP(c.TCP),
		validatePort("http", c.HTTP.Port),
		validatePort("grpc", c.GRPC.Port),
		validateLogging(c.Logging),
		validateSession(c.Session),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	if w.MaxTotalPlayers < 1 {
		errs = append(errs, fmt.Sprintf("world.max_total_players must be >= 1, got %d", w.MaxTotalPlayers))
	}
	if w.TotalRooms < 1 {
		errs = append(errs, fmt.Sprintf("world.total_rooms must be >= 1, got %d", w.TotalRooms))
	}
	if w.MaxRoomPlayers < 1 || w.MaxRoomPlayers > world.MaxRoomCapacity {
		errs = append(errs, fmt.Sprintf("world.max_room_players must be within [1,%d], got %d", world.MaxRoomCapacity, w.MaxRoomPlayers))
	}
	if w.RoomRows < 1 || w.RoomRows > world.MaxGridSide {
		errs = append(errs, fmt.Sprintf("world.room_rows must be within [1,%d], got %d", world.MaxGridSide, w.RoomRows))
	}
	if w.RoomCols < 1 || w.RoomCols > world.MaxGridSide {
		errs = append(errs, fmt.Sprintf("world.room_cols must be within [1,%d], got %d", world.MaxGridSide, w.RoomCols))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateRules(r RulesConfig, w WorldConfig) error {
	var errs []string
	if r.MaxPlayerStrength < 1 {
		errs = append(errs, fmt.Sprintf("rules.max_player_strength must be >= 1, got %d", r.MaxPlayerStrength))
	}
	if r.MaxBuildingStrength < 1 {
		errs = append(errs, fmt.Sprintf("rules.max_building_strength must be >= 1, got %d", r.MaxBuildingStrength))
	}
	if r.AttackDamage < 0 {
		errs = append(errs, fmt.Sprintf("rules.attack_damage must be >= 0, got %d", r.AttackDamage))
	}
	for typ, dmg := range r.TypeDamage {
		if dmg < 0 {
			errs = append(errs, fmt.Sprintf("rules.type_damage[%s] must be >= 0, got %d", typ, dmg))
		}
	}
	if r.SpawnRow < 0 || (w.RoomRows > 0 && r.SpawnRow >= w.RoomRows) {
		errs = append(errs, fmt.Sprintf("rules.spawn_row must be within [0,%d), got %d", w.RoomRows, r.SpawnRow))
	}
	if r.SpawnCol < 0 || (w.RoomCols > 0 && r.SpawnCol >= w.RoomCols) {
		errs = append(errs, fmt.Sprintf("rules.spawn_col must be within [0,%d), got %d", w.RoomCols, r.SpawnCol))
	}
	validElimination := map[string]bool{"respawn": true, "remove": true}
	if !validElimination[r.Elimination] {
		errs = append(errs, fmt.Sprintf("rules.elimination must be one of [respawn, remove], got %q", r.Elimination))
	}
	validMove := map[string]bool{"block": true, "swap": true}
	if !validMove[r.OccupiedMove] {
		errs = append(errs, fmt.Sprintf("rules.occupied_move must be one of [block, swap], got %q", r.OccupiedMove))
	}
	validSnapshot := map[string]bool{"join": true, "change": true}
	if !validSnapshot[r.Snapshot] {
		errs = append(errs, fmt.Sprintf("rules.snapshot must be one of [join, change], got %q", r.Snapshot))
	}
	if r.SnapshotInterval < 0 {
		errs = append(errs, fmt.Sprintf("rules.snapshot_interval must be >= 0, got %s", r.SnapshotInterval))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(section string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s.port must be 1-65535, got %d", section, port)
	}
	return nil
}

func validateTCP(t TCPConfig) error {
	var errs []string
	if t.ReadTimeout < 0 {
		errs = append(errs, "tcp.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "tcp.write_timeout must not be negative")
	}
	if t.MaxFrame < 2 {
		errs = append(errs, fmt.Sprintf("tcp.max_frame must be >= 2, got %d", t.MaxFrame))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.File != "" && (l.MaxSizeMB < 1 || l.MaxBackups < 0 || l.MaxAgeDays < 0) {
		return fmt.Errorf("logging rotation requires max_size_mb >= 1 and non-negative max_backups/max_age_days")
	}
	return nil
}

func validateSession(s SessionConfig) error {
	if s.OutboundBuffer < 1 {
		return fmt.Errorf("session.outbound_buffer must be >= 1, got %d", s.OutboundBuffer)
	}
	return nil
}

// LoadDotEnv loads environment variables from the given .env files. Missing
// files are skipped; variables already present in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error. Every world key must be
// present and an integer.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if err := requireInts(v, requiredWorldKeys); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewViper returns a Viper instance with the defaults and environment
// bindings used by Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable overrides with SIEGE_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range requiredWorldKeys {
		_ = v.BindEnv(k)
	}

	setDefaults(v)
	return v
}

// requireInts fails unless every key is set to an integral value.
func requireInts(v *viper.Viper, keys []string) error {
	var errs []string
	for _, k := range keys {
		if !v.IsSet(k) {
			errs = append(errs, fmt.Sprintf("%s is required", k))
			continue
		}
		if _, err := asInt(v.Get(k)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", k, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func asInt(raw any) (int, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of range", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", raw, raw)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rules.max_player_strength", 100)
	v.SetDefault("rules.max_building_strength", 100)
	v.SetDefault("rules.attack_damage", 10)
	v.SetDefault("rules.spawn_row", 0)
	v.SetDefault("rules.spawn_col", 0)
	v.SetDefault("rules.elimination", "respawn")
	v.SetDefault("rules.occupied_move", "block")
	v.SetDefault("rules.snapshot", "join")
	v.SetDefault("rules.snapshot_interval", "0s")

	v.SetDefault("tcp.host", "0.0.0.0")
	v.SetDefault("tcp.port", 7000)
	v.SetDefault("tcp.read_timeout", "5m")
	v.SetDefault("tcp.write_timeout", "10s")
	v.SetDefault("tcp.max_frame", 64*1024)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 7080)

	v.SetDefault("grpc.host", "127.0.0.1")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("session.outbound_buffer", 64)
}
