package config

// Layer 0 of the override chain.
const (
	defaultChunkSize         = "10MiB"
	defaultChunkingThreshold = "100MiB"
	defaultParallelDownloads = 4
	defaultBandwidthLimit    = "0"
	defaultConnectTimeout    = "5s"
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Transfers: TransfersConfig{
			ChunkSize:         defaultChunkSize,
			ChunkingThreshold: defaultChunkingThreshold,
			ParallelDownloads: defaultParallelDownloads,
			BandwidthLimit:    defaultBandwidthLimit,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
	}
}
