package davclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Retry and backoff constants for transport-level retries.
const (
	maxRetries       = 3
	baseBackoff      = 1 * time.Second
	maxBackoff       = 30 * time.Second
	backoffFactor    = 2.0
	jitterFraction   = 0.25
	DefaultUserAgent = "ocdav/0.1"
)

// errBodyNotRewindable stops retries and redirects for streaming bodies.
var errBodyNotRewindable = errors.New("davclient: request body cannot be replayed")

// Request describes one WebDAV exchange.
type Request struct {
	Method string
	URL    string // absolute, already encoded
	Header http.Header

	// Body is sent as-is. Bodies that implement io.Seeker can be replayed for
	// retries and redirects; anything else is sent at most once.
	Body          io.Reader
	ContentLength int64 // 0 with a nil Body; -1 for unknown

	FollowRedirects bool
	// Timeout bounds the whole exchange including reading the response body.
	// Zero means no per-request bound (transfers).
	Timeout time.Duration
	// NoRetry disables transport-level retries for this request.
	NoRetry bool
}

// Response is an HTTP response plus the redirects followed to obtain it.
// The caller must close Body.
type Response struct {
	*http.Response
	// Redirections is nil unless the request set FollowRedirects.
	Redirections *RedirectionPath
	// FinalURL is the URL that produced this response.
	FinalURL string
}

// RequestID returns the request id the server associated with the response.
func (r *Response) RequestID() string {
	return requestID(r.Header)
}

// Client is an HTTP client for an ownCloud-compatible WebDAV server.
// It handles authentication, redirect tracking, and retry with
// exponential backoff for read-only requests (GET, HEAD, PROPFIND, OPTIONS).
// Requests that change server state are sent exactly once.
type Client struct {
	baseURL    string // server root, no trailing slash
	userID     string
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	// sleepFunc is called to wait between retries. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a WebDAV client for the server at baseURL (for example
// "https://cloud.example.com"). userID is the stable id used in
// /remote.php/dav/files/{userID}. The HTTP client is copied and its automatic
// redirect handling disabled; Execute follows redirects itself so it can
// record them.
func NewClient(
	baseURL, userID string, creds Credentials, httpClient *http.Client, logger *slog.Logger, userAgent string,
) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("davclient: parsing base URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("davclient: base URL %q must be an absolute http(s) URL", baseURL)
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if creds == nil {
		creds = Anonymous
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	hc := *httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userID:     userID,
		creds:      creds,
		httpClient: &hc,
		logger:     logger,
		userAgent:  userAgent,
		sleepFunc:  timeSleep,
	}, nil
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// UserID returns the stable user id.
func (c *Client) UserID() string { return c.userID }

// Username returns the credentials' login name, falling back to the user id.
func (c *Client) Username() string {
	if name := c.creds.Username(); name != "" {
		return name
	}

	return c.userID
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Execute performs the request, following redirects when asked to, and
// returns the response whatever its status. Only transport failures produce
// an error; interpreting the status is the caller's job.
func (c *Client) Execute(ctx context.Context, r *Request) (*Response, error) {
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
	}

	var redirs *RedirectionPath
	if r.FollowRedirects {
		redirs = &RedirectionPath{}
	}

	target := r.URL

	for {
		resp, err := c.doWithRetry(ctx, r, target)
		if err != nil {
			cancel()
			return nil, err
		}

		next, follow := c.nextHop(r, resp, target, redirs)
		if !follow {
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}

			return &Response{Response: resp, Redirections: redirs, FinalURL: target}, nil
		}

		drainAndClose(resp.Body)

		c.logger.Debug("following redirect",
			slog.String("method", r.Method),
			slog.Int("status", resp.StatusCode),
			slog.Int("hop", redirs.Count()+1),
		)

		redirs.add(target, next, resp.StatusCode)
		target = next
	}
}

// nextHop decides whether resp should be followed and where to.
func (c *Client) nextHop(r *Request, resp *http.Response, current string, redirs *RedirectionPath) (string, bool) {
	if !r.FollowRedirects || !isRedirect(resp.StatusCode) {
		return "", false
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", false
	}

	if redirs.Count() >= maxRedirections {
		c.logger.Warn("redirect limit reached",
			slog.String("method", r.Method),
			slog.Int("limit", maxRedirections),
		)

		return "", false
	}

	if err := rewindBody(r.Body); err != nil {
		c.logger.Warn("not following redirect with streaming body",
			slog.String("method", r.Method),
		)

		return "", false
	}

	next, err := resolveLocation(current, location)
	if err != nil {
		c.logger.Warn("invalid redirect location",
			slog.String("location", location),
			slog.String("error", err.Error()),
		)

		return "", false
	}

	return next, true
}

// doWithRetry executes one hop, retrying network errors and transient
// statuses unless the request opted out or its body cannot be replayed.
func (c *Client) doWithRetry(ctx context.Context, r *Request, target string) (*http.Response, error) {
	var attempt int

	for {
		if attempt > 0 {
			if err := rewindBody(r.Body); err != nil {
				return nil, fmt.Errorf("davclient: %s retry: %w", r.Method, err)
			}
		}

		resp, err := c.doOnce(ctx, r, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("davclient: request canceled: %w", ctx.Err())
			}

			var authErr *authorizeError
			if errors.As(err, &authErr) || !c.canRetry(r, attempt) {
				return nil, fmt.Errorf("davclient: %s failed: %w", r.Method, err)
			}

			backoff := c.calcBackoff(attempt)
			c.logger.Warn("retrying after network error",
				slog.String("method", r.Method),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("davclient: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		if isRetryable(resp.StatusCode) && c.canRetry(r, attempt) {
			backoff := c.retryBackoff(resp, attempt)
			drainAndClose(resp.Body)

			c.logger.Warn("retrying after HTTP error",
				slog.String("method", r.Method),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("davclient: request canceled: %w", err)
			}

			attempt++

			continue
		}

		c.logger.Debug("request completed",
			slog.String("method", r.Method),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempts", attempt+1),
		)

		return resp, nil
	}
}

// retryableMethods are the methods safe to resend: a repeated MOVE, COPY,
// MKCOL, DELETE or PUT may act on state the first attempt already changed.
var retryableMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	"PROPFIND":         true,
}

func (c *Client) canRetry(r *Request, attempt int) bool {
	if r.NoRetry || attempt >= maxRetries || !retryableMethods[r.Method] {
		return false
	}

	if r.Body == nil {
		return true
	}

	_, ok := r.Body.(io.Seeker)

	return ok
}

// authorizeError marks failures to obtain credentials; they are not retried.
type authorizeError struct{ err error }

func (e *authorizeError) Error() string { return e.err.Error() }
func (e *authorizeError) Unwrap() error { return e.err }

// doOnce executes a single HTTP request (no retry, no redirects).
func (c *Client) doOnce(ctx context.Context, r *Request, target string) (*http.Response, error) {
	body := r.Body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if r.Body != nil && r.ContentLength != 0 {
		req.ContentLength = r.ContentLength
	}

	if err := c.creds.Authorize(req); err != nil {
		return nil, &authorizeError{err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)

	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	c.logger.Debug("sending request",
		slog.String("method", r.Method),
		slog.String("request_id", req.Header.Get("X-Request-Id")),
	)

	return c.httpClient.Do(req)
}

// retryBackoff honors Retry-After (in seconds) on 429 and 503 responses.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, maxBackoff)
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// rewindBody seeks a replayable body back to its start.
func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	s, ok := body.(io.Seeker)
	if !ok {
		return errBodyNotRewindable
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("davclient: rewinding body: %w", err)
	}

	return nil
}

// drainAndClose discards the rest of a body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody)) //nolint:errcheck // best-effort drain
	body.Close()
}

// DrainAndClose is drainAndClose for callers that are done with a response.
func DrainAndClose(resp *Response) {
	if resp != nil && resp.Body != nil {
		drainAndClose(resp.Body)
	}
}

// cancelOnClose releases a per-request timeout once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()

	return err
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
