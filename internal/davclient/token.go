package davclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/ocdav/internal/tokenfile"
)

// ErrNotLoggedIn is returned when no token file exists at the given path.
var ErrNotLoggedIn = errors.New("davclient: no saved token")

// Token file metadata keys that describe how to refresh the token.
const (
	MetaClientID     = "client_id"
	MetaClientSecret = "client_secret"
	MetaTokenURL     = "token_url"
)

// TokenSourceFromPath loads a saved token and returns a source that refreshes
// it through the token endpoint recorded in the file's metadata and writes
// refreshed tokens back to disk. Without a token_url the saved token is used
// as-is until it expires.
//
// The returned source binds ctx to the oauth2 refresh client, so ctx must
// outlive it.
func TokenSourceFromPath(ctx context.Context, tokenPath string, logger *slog.Logger) (oauth2.TokenSource, error) {
	tok, meta, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	if meta[MetaTokenURL] == "" {
		return oauth2.StaticTokenSource(tok), nil
	}

	cfg := &oauth2.Config{
		ClientID:     meta[MetaClientID],
		ClientSecret: meta[MetaClientSecret],
		Endpoint:     oauth2.Endpoint{TokenURL: meta[MetaTokenURL]},
	}

	return &persistingSource{
		src:    cfg.TokenSource(ctx, tok),
		path:   tokenPath,
		meta:   meta,
		last:   tok.AccessToken,
		logger: logger,
	}, nil
}

// persistingSource saves the token to disk whenever the wrapped source hands
// out a new access token.
type persistingSource struct {
	src    oauth2.TokenSource
	path   string
	meta   map[string]string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		p.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.last {
		return tok, nil
	}

	p.last = tok.AccessToken
	p.logger.Info("token refreshed",
		slog.String("path", p.path),
		slog.Time("new_expiry", tok.Expiry),
	)

	if saveErr := tokenfile.Save(p.path, tok, p.meta); saveErr != nil {
		p.logger.Warn("failed to persist refreshed token",
			slog.String("path", p.path),
			slog.String("error", saveErr.Error()),
		)
	}

	return tok, nil
}
