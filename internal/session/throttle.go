package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// burstMultiplier sizes the token bucket relative to the per-second rate,
// so short idle gaps can be spent on the next read.
const burstMultiplier = 2

// throttledTransport limits the combined request and response body
// throughput of every request it carries with one shared token bucket.
type throttledTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// newThrottledTransport wraps base with a bytesPerSec limit. A limit of 0
// returns base unchanged.
func newThrottledTransport(base http.RoundTripper, bytesPerSec int64, logger *slog.Logger) http.RoundTripper {
	if bytesPerSec <= 0 {
		return base
	}

	burst := int(bytesPerSec) * burstMultiplier
	logger.Debug("bandwidth limit active", slog.Int64("bytes_per_sec", bytesPerSec), slog.Int("burst", burst))

	return &throttledTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.Body != nil && req.Body != http.NoBody {
		req = req.Clone(ctx)
		req.Body = &throttledBody{rc: req.Body, limiter: t.limiter, ctx: ctx}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	resp.Body = &throttledBody{rc: resp.Body, limiter: t.limiter, ctx: ctx}

	return resp, nil
}

// throttledBody blocks after each read until the limiter allows the bytes
// that were consumed.
type throttledBody struct {
	rc      io.ReadCloser
	limiter *rate.Limiter
	ctx     context.Context
}

func (b *throttledBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		if waitErr := waitN(b.ctx, b.limiter, n); waitErr != nil {
			return n, waitErr
		}
	}

	return n, err
}

func (b *throttledBody) Close() error { return b.rc.Close() }

// waitN splits n into burst-sized requests; WaitN rejects anything larger
// than the burst.
func waitN(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()

	for n > 0 {
		take := min(n, burst)
		if err := limiter.WaitN(ctx, take); err != nil {
			return err
		}

		n -= take
	}

	return nil
}
