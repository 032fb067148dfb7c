package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"github.com/tonimelisma/ocdav/internal/config"
	"github.com/tonimelisma/ocdav/internal/ledger"
)

const testUser = "u1"

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
}

// davServer is an in-process WebDAV server mounted at the user's files root.
// It records every request it serves.
type davServer struct {
	*httptest.Server
	Dir string

	mu       sync.Mutex
	requests []recordedRequest
}

func newDAVServer(t *testing.T) *davServer {
	t.Helper()

	s := &davServer{Dir: t.TempDir()}
	handler := &webdav.Handler{
		Prefix:     "/remote.php/dav/files/" + testUser,
		FileSystem: webdav.Dir(s.Dir),
		LockSystem: webdav.NewMemLS(),
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		s.mu.Unlock()

		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *davServer) write(t *testing.T, rel, content string) {
	t.Helper()

	p := filepath.Join(s.Dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (s *davServer) read(t *testing.T, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

func (s *davServer) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.Dir, filepath.FromSlash(rel)))
	return err == nil
}

func (s *davServer) requestsFor(method string) []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []recordedRequest

	for _, r := range s.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}

	return out
}

// cliEnv runs the root command against a davServer with an isolated config
// file and ledger.
type cliEnv struct {
	srv        *davServer
	configPath string
	ledgerPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	srv := newDAVServer(t)
	dir := t.TempDir()

	e := &cliEnv{
		srv:        srv,
		configPath: filepath.Join(dir, "config.toml"),
		ledgerPath: filepath.Join(dir, "ledger.db"),
	}

	content := "[server]\nurl = \"" + srv.URL + "\"\nuser_id = \"" + testUser + "\"\n\n" +
		"[ledger]\npath = \"" + filepath.ToSlash(e.ledgerPath) + "\"\n"
	require.NoError(t, os.WriteFile(e.configPath, []byte(content), 0o600))

	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvUser, "")
	t.Setenv(config.EnvTokenFile, "")
	t.Setenv(config.EnvPassword, "secret")

	return e
}

// run executes the CLI with args and returns stdout and stderr.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCmd()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

// ledger opens the environment's ledger for direct inspection.
func (e *cliEnv) ledger(t *testing.T) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(context.Background(), e.ledgerPath, testUser+"@"+e.srv.URL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}
