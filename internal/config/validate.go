package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	minParallelDownloads = 1
	maxParallelDownloads = 32
	minChunkBytes        = 1024 * 1024
	minConnectTimeout    = time.Second
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks every configuration value and returns all errors found,
// so a broken file can be fixed in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if s.URL != "" {
		if err := validateHTTPURL(s.URL); err != nil {
			errs = append(errs, fmt.Errorf("server.url: %w", err))
		}
	}

	if s.SpaceWebDAVURL != "" {
		if err := validateHTTPURL(s.SpaceWebDAVURL); err != nil {
			errs = append(errs, fmt.Errorf("server.space_webdav_url: %w", err))
		}
	}

	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}

	return nil
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	chunk, err := ParseSize(t.ChunkSize)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("transfers.chunk_size: %w", err))
	case chunk != 0 && chunk < minChunkBytes:
		errs = append(errs, fmt.Errorf("transfers.chunk_size: must be 0 or at least 1MiB, got %s", t.ChunkSize))
	}

	if _, err := ParseSize(t.ChunkingThreshold); err != nil {
		errs = append(errs, fmt.Errorf("transfers.chunking_threshold: %w", err))
	}

	if _, err := ParseRate(t.BandwidthLimit); err != nil {
		errs = append(errs, fmt.Errorf("transfers.bandwidth_limit: %w", err))
	}

	if t.ParallelDownloads < minParallelDownloads || t.ParallelDownloads > maxParallelDownloads {
		errs = append(errs, fmt.Errorf("transfers.parallel_downloads: must be between %d and %d, got %d",
			minParallelDownloads, maxParallelDownloads, t.ParallelDownloads))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil {
		return []error{fmt.Errorf("network.connect_timeout: %w", err)}
	}

	if d < minConnectTimeout {
		return []error{fmt.Errorf("network.connect_timeout: must be at least %s, got %s", minConnectTimeout, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: must be debug, info, warn or error, got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format: must be text or json, got %q", l.LogFormat))
	}

	return errs
}
