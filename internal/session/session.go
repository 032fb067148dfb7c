// Package session builds authenticated WebDAV clients from resolved
// configuration.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/ocdav/internal/config"
	"github.com/tonimelisma/ocdav/internal/davclient"
)

// metaHTTPTimeout caps any single metadata exchange. Individual operations
// set tighter per-request bounds; this only catches a stalled server.
const metaHTTPTimeout = 15 * time.Minute

// ErrNoCredentials is returned when neither a token file nor a password is
// configured.
var ErrNoCredentials = errors.New("session: no credentials configured")

// Session holds the two clients used against one account.
type Session struct {
	Meta     *davclient.Client // metadata ops (bounded)
	Transfer *davclient.Client // uploads/downloads (no timeout)
	Resolved *config.Resolved
}

// SpaceURL returns the configured space WebDAV root, or "" for the
// per-user files tree.
func (s *Session) SpaceURL() string { return s.Resolved.SpaceURL }

// Provider creates Sessions and caches token sources by token file path so
// refreshes of the same token are never raced.
type Provider struct {
	metaHTTP     *http.Client
	transferHTTP *http.Client
	logger       *slog.Logger

	// TokenSourceFn creates a TokenSource from a token file path. Exported
	// for test injection; defaults to davclient.TokenSourceFromPath.
	TokenSourceFn func(ctx context.Context, tokenPath string, logger *slog.Logger) (oauth2.TokenSource, error)

	mu         sync.Mutex
	tokenCache map[string]oauth2.TokenSource
}

// NewProvider creates a Provider whose HTTP clients follow the network
// settings in r. The bandwidth limit applies to the transfer client only.
func NewProvider(r *config.Resolved, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	transport := NewTransport(r.ConnectTimeout, r.ForceHTTP11)

	return &Provider{
		metaHTTP:      &http.Client{Transport: transport, Timeout: metaHTTPTimeout},
		transferHTTP:  &http.Client{Transport: newThrottledTransport(transport, r.BandwidthLimit, logger)},
		logger:        logger,
		TokenSourceFn: davclient.TokenSourceFromPath,
		tokenCache:    make(map[string]oauth2.TokenSource),
	}
}

// NewTransport clones the default transport with a dial timeout. With
// forceHTTP11 the client never negotiates HTTP/2.
func NewTransport(connectTimeout time.Duration, forceHTTP11 bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()

	if connectTimeout > 0 {
		dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
		t.DialContext = dialer.DialContext
		t.TLSHandshakeTimeout = connectTimeout
	}

	if forceHTTP11 {
		t.ForceAttemptHTTP2 = false
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	return t
}

// Session creates an authenticated Session. A token file takes precedence
// over a password.
func (p *Provider) Session(ctx context.Context, r *config.Resolved) (*Session, error) {
	creds, err := p.credentials(ctx, r)
	if err != nil {
		return nil, err
	}

	meta, err := davclient.NewClient(r.ServerURL, r.UserID, creds, p.metaHTTP, p.logger, r.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	transfer, err := davclient.NewClient(r.ServerURL, r.UserID, creds, p.transferHTTP, p.logger, r.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	p.logger.Debug("session created",
		slog.String("server", r.ServerURL),
		slog.String("user_id", r.UserID),
		slog.Bool("space", r.SpaceURL != ""),
	)

	return &Session{Meta: meta, Transfer: transfer, Resolved: r}, nil
}

// Anonymous creates a Session that sends no credentials. Only existence and
// server discovery requests are useful with it.
func (p *Provider) Anonymous(r *config.Resolved) (*Session, error) {
	meta, err := davclient.NewClient(r.ServerURL, r.UserID, davclient.Anonymous, p.metaHTTP, p.logger, r.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Session{Meta: meta, Transfer: meta, Resolved: r}, nil
}

func (p *Provider) credentials(ctx context.Context, r *config.Resolved) (davclient.Credentials, error) {
	switch {
	case r.TokenFile != "":
		ts, err := p.tokenSource(ctx, r.TokenFile)
		if err != nil {
			if errors.Is(err, davclient.ErrNotLoggedIn) {
				return nil, fmt.Errorf("no usable token in %s, save one with a valid refresh token first: %w", r.TokenFile, err)
			}

			return nil, err
		}

		return davclient.BearerCredentials{User: r.Username, Source: ts}, nil
	case r.Password != "":
		return davclient.BasicCredentials{User: r.Username, Password: r.Password}, nil
	default:
		return nil, fmt.Errorf("%w: set %s or token_file", ErrNoCredentials, config.EnvPassword)
	}
}

func (p *Provider) tokenSource(ctx context.Context, tokenPath string) (oauth2.TokenSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ts, ok := p.tokenCache[tokenPath]; ok {
		return ts, nil
	}

	ts, err := p.TokenSourceFn(ctx, tokenPath, p.logger)
	if err != nil {
		return nil, err
	}

	p.tokenCache[tokenPath] = ts

	return ts, nil
}
