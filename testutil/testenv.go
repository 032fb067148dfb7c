// Package testutil holds environment helpers for the end-to-end tests,
// which run the built binary and cannot import internal packages.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedServersVar names the comma-separated list of servers that
// end-to-end tests may write to.
const AllowedServersVar = "OCDAV_ALLOWED_TEST_SERVERS"

// LoadDotEnv reads KEY=VALUE pairs from a .env file. A missing file is not
// an error. Variables already set in the environment win.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist exits the process unless the server in serverVar is
// listed in AllowedServersVar. End-to-end tests create and delete files, so
// they must never run against an account by accident.
func ValidateAllowlist(serverVar string) {
	allowlist := os.Getenv(AllowedServersVar)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AllowedServersVar)
		fmt.Fprintf(os.Stderr, "Example: %s=https://cloud.example.com\n", AllowedServersVar)
		os.Exit(1)
	}

	server := strings.TrimSuffix(os.Getenv(serverVar), "/")
	if server == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", serverVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSuffix(strings.TrimSpace(a), "/") == server {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", serverVar, server, AllowedServersVar, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the working directory to the directory
// holding go.mod, or returns fallback.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
