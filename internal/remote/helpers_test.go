package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

const testUser = "u1"

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestTransport creates a client for url authenticated as testUser.
func newTestTransport(t *testing.T, url string) *davclient.Client {
	t.Helper()

	c, err := davclient.NewClient(url, testUser, davclient.BasicCredentials{User: "alice", Password: "pw"},
		http.DefaultClient, discardLogger(), "ocdav-test")
	require.NoError(t, err)

	return c
}

// requestLog records the method and path of every request a handler sees.
type requestLog struct {
	mu       sync.Mutex
	requests []loggedRequest
}

type loggedRequest struct {
	Method string
	Path   string
	Header http.Header
}

func (l *requestLog) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.requests = append(l.requests, loggedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		l.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (l *requestLog) count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0

	for _, r := range l.requests {
		if r.Method == method {
			n++
		}
	}

	return n
}

func (l *requestLog) countPath(method, path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0

	for _, r := range l.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}

	return n
}

func (l *requestLog) all() []loggedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]loggedRequest(nil), l.requests...)
}

// davServer is a real WebDAV server backed by a temp dir and mounted where
// ownCloud serves a user's files.
type davServer struct {
	*httptest.Server
	Dir string
	Log *requestLog
}

func newDAVServer(t *testing.T) *davServer {
	t.Helper()

	dir := t.TempDir()
	log := &requestLog{}

	handler := &webdav.Handler{
		Prefix:     "/remote.php/dav/files/" + testUser,
		FileSystem: webdav.Dir(dir),
		LockSystem: webdav.NewMemLS(),
	}

	srv := httptest.NewServer(log.wrap(handler))
	t.Cleanup(srv.Close)

	return &davServer{Server: srv, Dir: dir, Log: log}
}

// write creates a file below the served dir.
func (s *davServer) write(t *testing.T, rel string, data []byte) {
	t.Helper()

	p := filepath.Join(s.Dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func (s *davServer) mkdir(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir, filepath.FromSlash(rel)), 0o755))
}

func (s *davServer) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.Dir, filepath.FromSlash(rel)))
	return err == nil
}

// offlineTransport fails the test on any request. Used to prove an
// operation decided locally.
type offlineTransport struct {
	*davclient.Client
	t *testing.T
}

func newOfflineTransport(t *testing.T) offlineTransport {
	return offlineTransport{Client: newTestTransport(t, "https://cloud.invalid"), t: t}
}

func (o offlineTransport) Execute(_ context.Context, r *davclient.Request) (*davclient.Response, error) {
	o.t.Errorf("unexpected %s %s", r.Method, r.URL)
	return nil, errors.New("offline")
}

// payload returns n deterministic bytes.
func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}

	return b
}

// newUnavailableServer answers every request with 503 and a Retry-After hint.
func newUnavailableServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()

	log := &requestLog{}
	srv := httptest.NewServer(log.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
	})))
	t.Cleanup(srv.Close)

	return srv, log
}
