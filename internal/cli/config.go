package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	LogLevel  string `env:"RELGRAPH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"RELGRAPH_LOG_FORMAT" envDefault:"text"`
	// SnapshotDB is the SQLite database holding saved snapshots.
	SnapshotDB  string        `env:"RELGRAPH_SNAPSHOT_DB" envDefault:"relgraph.db"`
	SnapshotTTL time.Duration `env:"RELGRAPH_SNAPSHOT_TTL" envDefault:"0s"`
	// WatchDebounce coalesces bursts of file events in replay --watch.
	WatchDebounce time.Duration `env:"RELGRAPH_WATCH_DEBOUNCE" envDefault:"100ms"`
}

// LoadConfig loads envFiles (".env" when none is given) into the process
// environment and parses the configuration. Missing files are ignored;
// variables already set win over file values.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the slog logger described by level and format.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}
