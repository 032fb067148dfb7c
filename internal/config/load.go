package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrNoServer means no server URL was configured in any layer.
var ErrNoServer = errors.New("config: no server configured (set [server] url or " + EnvServerURL + ")")

// ErrNoUser means no user id was configured in any layer.
var ErrNoUser = errors.New("config: no user configured (set [server] user_id or " + EnvUser + ")")

// Resolved is the effective configuration after every layer was applied,
// with sizes and durations parsed.
type Resolved struct {
	ConfigPath string

	ServerURL string
	UserID    string
	Username  string
	Password  string `json:"-"`
	SpaceURL  string
	TokenFile string

	ChunkSize         int64
	ChunkingThreshold int64
	ParallelDownloads int
	BandwidthLimit    int64 // bytes per second, 0 = unlimited

	ConnectTimeout time.Duration
	UserAgent      string
	ForceHTTP11    bool

	LogLevel  slog.Level
	LogFormat string

	LedgerEnabled bool
	LedgerPath    string
}

// Load reads, decodes and validates a TOML config file. Unknown keys are
// errors with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults otherwise,
// so the CLI works from environment variables alone.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve applies the override chain: defaults, file, environment, CLI.
// The server URL and user id must be set by some layer.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg, env)

	if cli.LogLevel != "" {
		cfg.Logging.LogLevel = cli.LogLevel
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	r, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	r.ConfigPath = cfgPath
	r.Password = env.Password

	return r, nil
}

func applyEnv(cfg *Config, env EnvOverrides) {
	if env.ServerURL != "" {
		cfg.Server.URL = env.ServerURL
	}

	if env.User != "" {
		cfg.Server.UserID = env.User
		cfg.Server.Username = env.User
	}

	if env.TokenFile != "" {
		cfg.Server.TokenFile = env.TokenFile
	}
}

// resolve converts a validated Config into parsed values.
func resolve(cfg *Config) (*Resolved, error) {
	if cfg.Server.URL == "" {
		return nil, ErrNoServer
	}

	if cfg.Server.UserID == "" {
		return nil, ErrNoUser
	}

	username := cfg.Server.Username
	if username == "" {
		username = cfg.Server.UserID
	}

	// Validated already; errors are impossible here.
	chunk, _ := ParseSize(cfg.Transfers.ChunkSize)
	threshold, _ := ParseSize(cfg.Transfers.ChunkingThreshold)
	bandwidth, _ := ParseRate(cfg.Transfers.BandwidthLimit)
	connect, _ := time.ParseDuration(cfg.Network.ConnectTimeout)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: logging.log_level: %w", err)
	}

	ledgerPath := cfg.Ledger.Path
	if ledgerPath == "" {
		ledgerPath = DefaultLedgerPath()
	}

	return &Resolved{
		ServerURL:         strings.TrimSuffix(cfg.Server.URL, "/"),
		UserID:            cfg.Server.UserID,
		Username:          username,
		SpaceURL:          strings.TrimSuffix(cfg.Server.SpaceWebDAVURL, "/"),
		TokenFile:         expandHome(cfg.Server.TokenFile),
		ChunkSize:         chunk,
		ChunkingThreshold: threshold,
		ParallelDownloads: cfg.Transfers.ParallelDownloads,
		BandwidthLimit:    bandwidth,
		ConnectTimeout:    connect,
		UserAgent:         cfg.Network.UserAgent,
		ForceHTTP11:       cfg.Network.ForceHTTP11,
		LogLevel:          level,
		LogFormat:         cfg.Logging.LogFormat,
		LedgerEnabled:     cfg.Ledger.Enabled,
		LedgerPath:        expandHome(ledgerPath),
	}, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return home + p[1:]
}
