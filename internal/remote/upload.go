package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

const defaultMimeType = "application/octet-stream"

// UploadInfo describes a completed upload for the caller to persist.
type UploadInfo struct {
	ETag     string // quotes stripped; empty when the server sent none
	RemoteID string
	Size     int64
}

// Upload sends a local source to RemotePath with a single PUT. The request
// body reports progress as the HTTP layer reads it. RequiredETag makes the
// upload conditional (If-Match); a mismatch yields INVALID_OVERWRITE. The PUT
// is never retried by the transport. A source of unknown size (-1) is
// streamed without OC-Total-Length until it reports EOF.
//
// An Upload is single-use. Cancel and the listener methods may be called from
// other goroutines while Run executes.
type Upload struct {
	Source       Source
	RemotePath   string
	MimeType     string
	RequiredETag string
	// Checksum sends "OC-Checksum: SHA1:<hex>" computed from the source.
	Checksum bool
	SpaceURL string

	transferState
}

func (o *Upload) Run(ctx context.Context, t Transport) *Result[*UploadInfo] {
	return run(t, "upload", []any{
		slog.String("path", o.RemotePath),
		slog.Bool("conditional", o.RequiredETag != ""),
	}, func(logger *slog.Logger) *Result[*UploadInfo] {
		if res := validateUpload(o.Source, o.RemotePath); res != nil {
			return res
		}

		ctx, release := o.bind(ctx)
		defer release()

		root := resolveRoot(o.SpaceURL, t.FilesRoot())

		if pre := preflight(ctx, t, root, o.RemotePath); !pre.IsSuccess() {
			return transferFailure(convert[*UploadInfo](pre), &o.transferState)
		}

		h, err := uploadHeaders(o.Source, o.MimeType, o.RequiredETag, o.Checksum)
		if err != nil {
			return fromError[*UploadInfo](err)
		}

		body, err := o.Source.Open()
		if err != nil {
			return fromError[*UploadInfo](err)
		}
		defer body.Close()

		size := o.Source.Size()
		logger.Debug("starting PUT", slog.Int64("size", size))

		req := &davclient.Request{
			Method:  http.MethodPut,
			URL:     davclient.JoinURL(root, o.RemotePath),
			Header:  h,
			NoRetry: true,
		}

		pr := &progressReader{r: body, state: &o.transferState, name: path.Base(o.RemotePath), total: size}

		switch {
		case size > 0:
			pr.r = newSizedReader(body, size)
			req.Body, req.ContentLength = pr, size
		case size == 0:
			if err := checkEmpty(body); err != nil {
				return fromError[*UploadInfo](err)
			}
		default:
			req.Body, req.ContentLength = pr, -1
		}

		resp, err := t.Execute(ctx, req)
		if err != nil {
			return transferFailure(fromError[*UploadInfo](err), &o.transferState)
		}

		res := remapPrecondition(fromResponse[*UploadInfo](resp, http.StatusOK, http.StatusCreated, http.StatusNoContent))
		if !res.IsSuccess() {
			return res
		}

		davclient.DrainAndClose(resp)

		res.Data = uploadInfo(resp.Header, pr.transferred)

		return res
	})
}

func validateUpload(src Source, remotePath string) *Result[*UploadInfo] {
	if !validRemotePath(remotePath) || remotePath == "/" {
		return withCode[*UploadInfo](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, remotePath))
	}

	if src == nil {
		return withCode[*UploadInfo](CodeLocalFileNotFound, errors.New("remote: upload without source"))
	}

	return nil
}

// preflight lists the destination folder to confirm connectivity and
// credentials before a potentially long transfer.
func preflight(ctx context.Context, t Transport, root, remotePath string) *Result[bool] {
	resp, err := propfind(ctx, t, davclient.JoinURL(root, path.Dir(remotePath)), davclient.DepthOne,
		davclient.ProbeProps, readTimeout)
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

func uploadHeaders(src Source, mimeType, requiredETag string, checksum bool) (http.Header, error) {
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	h := http.Header{}
	h.Set(headerContentType, mimeType)

	if size := src.Size(); size >= 0 {
		h.Set(headerTotalLength, strconv.FormatInt(size, 10))
	}

	if mt := src.ModTime(); !mt.IsZero() {
		h.Set(headerMtime, strconv.FormatInt(mt.Unix(), 10))
	}

	if requiredETag != "" {
		h.Set(headerIfMatch, quoteETag(requiredETag))
	}

	if checksum {
		sum, err := sha1Hex(src)
		if err != nil {
			return nil, err
		}

		h.Set(headerChecksum, "SHA1:"+sum)
	}

	return h, nil
}

func uploadInfo(h http.Header, size int64) *UploadInfo {
	etag := h.Get(headerOCETag)
	if etag == "" {
		etag = h.Get(headerETag)
	}

	return &UploadInfo{
		ETag:     NormalizeETag(etag),
		RemoteID: h.Get(headerFileID),
		Size:     size,
	}
}

// transferFailure reports CANCELLED when the transfer was cancelled,
// whatever error the abort surfaced as.
func transferFailure[T any](res *Result[T], s *transferState) *Result[T] {
	if s.IsCancelled() && !res.IsSuccess() {
		res.Code = CodeCancelled
		if res.Err == nil || !errors.Is(res.Err, ErrCancelled) {
			res.Err = fmt.Errorf("%w: %v", ErrCancelled, res.Err)
		}
	}

	return res
}
