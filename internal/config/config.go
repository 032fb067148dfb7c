// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ocdav. Values resolve through four
// layers: defaults, then the config file, then environment variables, then
// CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Transfers TransfersConfig `toml:"transfers"`
	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
	Ledger    LedgerConfig    `toml:"ledger"`
}

// ServerConfig identifies the ownCloud server and the account on it.
// The password is never read from the file; it comes from OCDAV_PASSWORD.
type ServerConfig struct {
	URL string `toml:"url"`
	// UserID is the stable id used in /remote.php/dav/files/{user_id}.
	UserID string `toml:"user_id"`
	// Username is the login name. Defaults to UserID.
	Username       string `toml:"username"`
	SpaceWebDAVURL string `toml:"space_webdav_url"`
	// TokenFile selects bearer authentication from a saved OAuth2 token.
	TokenFile string `toml:"token_file"`
}

// TransfersConfig controls chunked uploads and download parallelism.
type TransfersConfig struct {
	ChunkSize         string `toml:"chunk_size"`
	ChunkingThreshold string `toml:"chunking_threshold"`
	ParallelDownloads int    `toml:"parallel_downloads"`
	// BandwidthLimit caps combined transfer throughput, e.g. "5MB/s". "0"
	// means unlimited.
	BandwidthLimit string `toml:"bandwidth_limit"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	UserAgent      string `toml:"user_agent"`
	ForceHTTP11    bool   `toml:"force_http_11"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// LedgerConfig controls the local ETag ledger.
type LedgerConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// CLIOverrides holds values from CLI flags. Empty strings mean the flag was
// not given.
type CLIOverrides struct {
	ConfigPath string // --config
	LogLevel   string // derived from --verbose / --quiet
}
