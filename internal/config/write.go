package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	configFilePermissions = 0o600
	configDirPermissions  = 0o700
)

// ErrConfigExists is returned by WriteInitial when the file already exists.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate lists every option as a commented default so the file
// documents itself.
const configTemplate = `# ocdav configuration

[server]
url = %q
user_id = %q
# username = ""          # login name, defaults to user_id
# space_webdav_url = ""  # WebDAV root of a space, replaces the files root
# token_file = ""        # OAuth2 token file; basic auth with OCDAV_PASSWORD when empty

[transfers]
# chunk_size = "10MiB"
# chunking_threshold = "100MiB"
# parallel_downloads = 4
# bandwidth_limit = "0"  # e.g. "5MB/s"

[network]
# connect_timeout = "5s"
# user_agent = ""
# force_http_11 = false

[logging]
# log_level = "info"     # debug, info, warn, error
# log_format = "text"    # text, json

[ledger]
# enabled = true
# path = ""              # default: <data dir>/ledger.db
`

// WriteInitial creates a config file for serverURL and userID. It refuses to
// replace an existing file.
func WriteInitial(path, serverURL, userID string, logger *slog.Logger) error {
	if err := validateHTTPURL(serverURL); err != nil {
		return fmt.Errorf("config: server url: %w", err)
	}

	if userID == "" {
		return ErrNoUser
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	logger.Info("writing config file", slog.String("path", path), slog.String("server", serverURL))

	return atomicWriteFile(path, []byte(fmt.Sprintf(configTemplate, serverURL, userID)))
}

// atomicWriteFile writes data to a temp file beside path and renames it into
// place. Parent directories are created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("config: writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("config: closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("config: setting permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("config: renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
