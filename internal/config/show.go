package config

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// RenderEffective writes the resolved configuration as annotated TOML-like
// text. Secrets are reported only as set or unset.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", orNone(r.ConfigPath))

	ew.printf("[server]\n")
	ew.printf("  url              = %q\n", r.ServerURL)
	ew.printf("  user_id          = %q\n", r.UserID)
	ew.printf("  username         = %q\n", r.Username)
	ew.printf("  space_webdav_url = %q\n", r.SpaceURL)
	ew.printf("  token_file       = %q\n", r.TokenFile)
	ew.printf("  # password from %s: %s\n\n", EnvPassword, setOrUnset(r.Password != ""))

	ew.printf("[transfers]\n")
	ew.printf("  chunk_size         = %q\n", humanize.IBytes(uint64(r.ChunkSize)))
	ew.printf("  chunking_threshold = %q\n", humanize.IBytes(uint64(r.ChunkingThreshold)))
	ew.printf("  parallel_downloads = %d\n", r.ParallelDownloads)
	ew.printf("  bandwidth_limit    = %q\n\n", formatRate(r.BandwidthLimit))

	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", r.ConnectTimeout.String())
	ew.printf("  user_agent      = %q\n", r.UserAgent)
	ew.printf("  force_http_11   = %t\n\n", r.ForceHTTP11)

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", r.LogLevel.String())
	ew.printf("  log_format = %q\n\n", r.LogFormat)

	ew.printf("[ledger]\n")
	ew.printf("  enabled = %t\n", r.LedgerEnabled)
	ew.printf("  path    = %q\n", r.LedgerPath)

	return ew.err
}

// errWriter keeps the first write error so printf calls can be chained.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

func setOrUnset(set bool) string {
	if set {
		return "set"
	}

	return "unset"
}
