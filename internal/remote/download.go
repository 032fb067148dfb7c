package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

const (
	downloadChunkSize = 4096
	partialSuffix     = ".partial"
	localDirPerms     = 0o700
	localFilePerms    = 0o600
)

// DownloadInfo describes a completed download for the caller to persist.
type DownloadInfo struct {
	LocalPath    string
	ETag         string // quotes stripped
	ModifiedTime time.Time
	Size         int64
}

// Download streams a remote file to LocalFolder joined with RemotePath. The
// body is written to a ".partial" sibling and renamed into place only after
// the declared Content-Length was received in full; on failure or
// cancellation nothing is left on disk.
//
// A Download is single-use. Cancel and the listener methods may be called
// from other goroutines while Run executes.
type Download struct {
	RemotePath  string
	LocalFolder string
	SpaceURL    string

	transferState
}

// LocalPath returns where the file will be stored.
func (o *Download) LocalPath() string {
	return filepath.Join(o.LocalFolder, filepath.FromSlash(o.RemotePath))
}

func (o *Download) Run(ctx context.Context, t Transport) *Result[*DownloadInfo] {
	return run(t, "download", []any{
		slog.String("path", o.RemotePath),
		slog.String("local_folder", o.LocalFolder),
	}, func(logger *slog.Logger) *Result[*DownloadInfo] {
		if !validRemotePath(o.RemotePath) || o.RemotePath == "/" {
			return withCode[*DownloadInfo](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, o.RemotePath))
		}

		if o.LocalFolder == "" {
			return withCode[*DownloadInfo](CodeInvalidLocalPath, errors.New("remote: local folder must not be empty"))
		}

		ctx, release := o.bind(ctx)
		defer release()

		if o.IsCancelled() {
			return withCode[*DownloadInfo](CodeCancelled, ErrCancelled)
		}

		resp, err := t.Execute(ctx, &davclient.Request{
			Method:          http.MethodGet,
			URL:             davclient.JoinURL(resolveRoot(o.SpaceURL, t.FilesRoot()), o.RemotePath),
			FollowRedirects: true,
		})
		if err != nil {
			return o.failure(err)
		}

		res := fromResponse[*DownloadInfo](resp, http.StatusOK)
		if !res.IsSuccess() {
			return res
		}

		defer resp.Body.Close()

		info, err := o.store(resp, logger)
		if err != nil {
			failed := o.failure(err)
			failed.HTTPStatus = res.HTTPStatus
			failed.RequestID = res.RequestID

			return failed
		}

		res.Data = info

		return res
	})
}

func (o *Download) failure(err error) *Result[*DownloadInfo] {
	return transferFailure(fromError[*DownloadInfo](err), &o.transferState)
}

// store copies the body to the partial file, verifies its length, and moves
// it into place.
func (o *Download) store(resp *davclient.Response, logger *slog.Logger) (*DownloadInfo, error) {
	target := o.LocalPath()
	partial := target + partialSuffix

	if err := os.MkdirAll(filepath.Dir(target), localDirPerms); err != nil {
		return nil, fmt.Errorf("remote: creating parent dir for %s: %w", target, err)
	}

	f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, localFilePerms)
	if err != nil {
		return nil, fmt.Errorf("remote: creating partial file %s: %w", partial, err)
	}

	n, copyErr := o.copyBody(f, resp.Body, resp.ContentLength)

	closeErr := f.Close()

	if copyErr == nil && closeErr != nil {
		copyErr = fmt.Errorf("remote: closing partial file %s: %w", partial, closeErr)
	}

	if copyErr == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		copyErr = fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteTransfer, n, resp.ContentLength)
	}

	if copyErr != nil {
		if rmErr := os.Remove(partial); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("failed to remove partial file",
				slog.String("path", partial),
				slog.String("error", rmErr.Error()),
			)
		}

		return nil, copyErr
	}

	mtime := parseHTTPTime(resp.Header.Get(headerLastModified))
	if !mtime.IsZero() {
		if err := os.Chtimes(partial, mtime, mtime); err != nil {
			logger.Warn("failed to set mtime on partial",
				slog.String("path", partial),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := os.Rename(partial, target); err != nil {
		os.Remove(partial)
		return nil, fmt.Errorf("remote: renaming partial to %s: %w", target, err)
	}

	etag := resp.Header.Get(headerETag)
	if etag == "" {
		etag = resp.Header.Get(headerOCETag)
	}

	return &DownloadInfo{
		LocalPath:    target,
		ETag:         NormalizeETag(etag),
		ModifiedTime: mtime,
		Size:         n,
	}, nil
}

// copyBody copies in fixed-size chunks, checking for cancellation before
// every write and notifying listeners after it.
func (o *Download) copyBody(w io.Writer, body io.Reader, total int64) (int64, error) {
	name := path.Base(o.RemotePath)
	buf := make([]byte, downloadChunkSize)

	var transferred int64

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if o.IsCancelled() {
				return transferred, ErrCancelled
			}

			if _, err := w.Write(buf[:n]); err != nil {
				return transferred, fmt.Errorf("remote: writing download: %w", err)
			}

			transferred += int64(n)
			o.notify(int64(n), transferred, total, name)
		}

		if errors.Is(readErr, io.EOF) {
			return transferred, nil
		}

		if errors.Is(readErr, io.ErrUnexpectedEOF) {
			return transferred, fmt.Errorf("%w: connection closed after %d of %d bytes",
				ErrIncompleteTransfer, transferred, total)
		}

		if readErr != nil {
			return transferred, fmt.Errorf("remote: reading download: %w", readErr)
		}
	}
}
