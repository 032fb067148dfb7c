package remote

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// Response-phase timeouts per operation kind. Transfers have none; they are
// bounded by cancellation instead.
const (
	probeTimeout  = 10 * time.Second
	readTimeout   = 40 * time.Second
	mkcolTimeout  = 30 * time.Second
	moveTimeout   = 10 * time.Minute
	deleteTimeout = 30 * time.Second
	metaTimeout   = 10 * time.Second
)

// WebDAV methods net/http has no constants for.
const (
	methodPropfind = "PROPFIND"
	methodMkcol    = "MKCOL"
	methodMove     = "MOVE"
	methodCopy     = "COPY"
)

// ownCloud request and response headers.
const (
	headerDestination  = "Destination"
	headerOverwrite    = "Overwrite"
	headerDepth        = "Depth"
	headerIfMatch      = "If-Match"
	headerTotalLength  = "OC-Total-Length"
	headerMtime        = "X-OC-Mtime"
	headerFileID       = "OC-FileId"
	headerChecksum     = "OC-Checksum"
	headerETag         = "ETag"
	headerOCETag       = "OC-ETag"
	headerLastModified = "Last-Modified"
	headerContentType  = "Content-Type"
	headerLocation     = "Location"
)

// Transport executes WebDAV requests and knows the server's roots.
// *davclient.Client satisfies it.
type Transport interface {
	Execute(ctx context.Context, r *davclient.Request) (*davclient.Response, error)
	BaseURL() string
	UserID() string
	Username() string
	FilesRoot() string
	FilesRootFor(user string) string
	UploadsRoot() string
	MetaURL(fileID string) string
	FileIDURL(fileID string) string
	Logger() *slog.Logger
}

// Operation is the contract every remote operation implements. Run blocks
// until the exchange completes, fails, or is cancelled, and never panics.
type Operation[T any] interface {
	Run(ctx context.Context, t Transport) *Result[T]
}

var _ Transport = (*davclient.Client)(nil)

// run executes fn, converting a panic into a failed result and logging entry
// and outcome.
func run[T any](t Transport, name string, attrs []any, fn func(logger *slog.Logger) *Result[T]) (res *Result[T]) {
	logger := t.Logger().With(slog.String("op", name))
	logger.Info("running remote operation", attrs...)

	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("remote operation panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)

			res = withCode[T](CodeUnknownError, fmt.Errorf("remote: %s panicked: %v", name, p))
		}

		logResult(logger, res, time.Since(start))
	}()

	return fn(logger)
}

func logResult[T any](logger *slog.Logger, res *Result[T], elapsed time.Duration) {
	attrs := []any{
		slog.String("code", res.Code.String()),
		slog.Int("http_status", res.HTTPStatus),
		slog.Duration("elapsed", elapsed),
	}

	if res.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", res.RequestID))
	}

	if res.IsSuccess() {
		logger.Debug("remote operation completed", attrs...)
		return
	}

	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}

	logger.Warn("remote operation failed", attrs...)
}

// propfind issues a PROPFIND with the given depth and property set.
func propfind(
	ctx context.Context, t Transport, target, depth string, props []xml.Name, timeout time.Duration,
) (*davclient.Response, error) {
	body := davclient.PropfindBody(props)

	return t.Execute(ctx, &davclient.Request{
		Method: methodPropfind,
		URL:    target,
		Header: http.Header{
			headerDepth:       {depth},
			headerContentType: {"application/xml; charset=utf-8"},
		},
		Body:            bytes.NewReader(body),
		ContentLength:   int64(len(body)),
		FollowRedirects: true,
		Timeout:         timeout,
	})
}

// simple issues a request without a body and returns its status-only result.
func simple(ctx context.Context, t Transport, req *davclient.Request, accepted ...int) *Result[struct{}] {
	resp, err := t.Execute(ctx, req)
	if err != nil {
		return fromError[struct{}](err)
	}

	res := fromResponse[struct{}](resp, accepted...)
	if res.IsSuccess() {
		davclient.DrainAndClose(resp)
	}

	return res
}

// resolveRoot picks override when set, else fallback.
func resolveRoot(override, fallback string) string {
	if override != "" {
		return override
	}

	return fallback
}

// validRemotePath reports whether p is an absolute remote path.
func validRemotePath(p string) bool {
	return p != "" && p[0] == '/'
}
