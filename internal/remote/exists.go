package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// CheckPathExistence probes a remote path with PROPFIND depth 0. Data is true
// when the server answered 200 or 207. Any other status yields false with the
// status mapped into the code; only transport failures carry no status.
type CheckPathExistence struct {
	RemotePath string
	// IsUserLogged selects the files root keyed by the stable user id. When
	// false the root is keyed by the login name, for validating credentials
	// before an account exists.
	IsUserLogged bool
	SpaceURL     string
}

func (o *CheckPathExistence) Run(ctx context.Context, t Transport) *Result[bool] {
	return run(t, "check_path_existence", []any{
		slog.String("path", o.RemotePath),
		slog.Bool("user_logged", o.IsUserLogged),
	}, func(*slog.Logger) *Result[bool] {
		if !validRemotePath(o.RemotePath) {
			return withCode[bool](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, o.RemotePath))
		}

		root := t.FilesRootFor(t.Username())
		if o.IsUserLogged {
			root = t.FilesRoot()
		}

		root = resolveRoot(o.SpaceURL, root)

		return probe(ctx, t, davclient.JoinURL(root, o.RemotePath))
	})
}

// probe issues the existence PROPFIND against an absolute URL.
func probe(ctx context.Context, t Transport, target string) *Result[bool] {
	resp, err := propfind(ctx, t, target, davclient.DepthZero, davclient.ProbeProps, probeTimeout)
	if err != nil {
		return fromError[bool](err)
	}

	res := fromResponse[bool](resp, http.StatusOK, http.StatusMultiStatus)
	if res.IsSuccess() {
		davclient.DrainAndClose(resp)

		res.Data = true
	}

	return res
}

// GetBaseURL discovers the effective server root by probing the files root
// and following redirects. Data is the base URL the final response came from.
// The code tells whether the connection is secure: OK_SSL, OK_NO_SSL, or
// OK_REDIRECT_TO_NON_SECURE_CONNECTION when an https start was redirected to
// plain http.
type GetBaseURL struct{}

func (o *GetBaseURL) Run(ctx context.Context, t Transport) *Result[string] {
	return run(t, "get_base_url", nil, func(*slog.Logger) *Result[string] {
		resp, err := propfind(ctx, t, t.FilesRoot(), davclient.DepthZero, davclient.ProbeProps, probeTimeout)
		if err != nil {
			return fromError[string](err)
		}

		res := fromResponse[string](resp, http.StatusOK, http.StatusMultiStatus)
		if !res.IsSuccess() {
			return res
		}

		davclient.DrainAndClose(resp)

		base, err := baseFromURL(resp.FinalURL, t.BaseURL())
		if err != nil {
			res.Code = CodeIncorrectAddress
			res.Err = err

			return res
		}

		res.Data = base
		res.Code = securityCode(t.BaseURL(), base)

		return res
	})
}

// baseFromURL strips the WebDAV part of a URL, leaving the server root.
// fallback is returned unchanged when final does not contain a DAV path.
func baseFromURL(final, fallback string) (string, error) {
	u, err := url.Parse(final)
	if err != nil {
		return "", fmt.Errorf("remote: parsing final URL: %w", err)
	}

	idx := strings.Index(u.Path, "/remote.php/")
	if idx < 0 {
		return fallback, nil
	}

	u.Path = u.Path[:idx]
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	return strings.TrimSuffix(u.String(), "/"), nil
}

func securityCode(start, final string) ResultCode {
	secureStart := strings.HasPrefix(start, "https://")
	secureFinal := strings.HasPrefix(final, "https://")

	switch {
	case secureFinal:
		return CodeOKSSL
	case secureStart:
		return CodeOKRedirectToNonSecureConnection
	default:
		return CodeOKNoSSL
	}
}
