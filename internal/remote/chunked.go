package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// DefaultChunkSize is used when ChunkedUpload.ChunkSize is not positive.
const DefaultChunkSize = 10 * 1024 * 1024

// assembledName is the virtual file MOVEd out of a transfer folder to
// assemble its chunks.
const assembledName = ".file"

// ChunkedUpload uploads a large source in pieces through the uploads root:
// MKCOL of a transfer folder, one PUT per chunk named by its zero-padded byte
// offset, then a MOVE of the folder's ".file" onto RemotePath, which carries
// the total length, mtime and If-Match. The transfer folder is removed when
// any step fails or the upload is cancelled. A source of unknown size (-1) is
// cut into full chunks until it reports EOF, and the MOVE carries the number
// of bytes actually sent.
//
// A ChunkedUpload is single-use. Cancel and the listener methods may be
// called from other goroutines while Run executes.
type ChunkedUpload struct {
	Source       Source
	RemotePath   string
	RequiredETag string
	ChunkSize    int64

	transferState
}

func (o *ChunkedUpload) Run(ctx context.Context, t Transport) *Result[*UploadInfo] {
	return run(t, "chunked_upload", []any{
		slog.String("path", o.RemotePath),
		slog.Int64("chunk_size", o.chunkSize()),
	}, func(logger *slog.Logger) *Result[*UploadInfo] {
		if res := validateUpload(o.Source, o.RemotePath); res != nil {
			return res
		}

		ctx, release := o.bind(ctx)
		defer release()

		if pre := preflight(ctx, t, t.FilesRoot(), o.RemotePath); !pre.IsSuccess() {
			return transferFailure(convert[*UploadInfo](pre), &o.transferState)
		}

		transferID := uuid.NewString()
		folder := "/" + transferID

		mk := (&CreateFolder{RemotePath: folder, IsChunksFolder: true}).Run(ctx, t)
		if !mk.IsSuccess() {
			return transferFailure(convert[*UploadInfo](mk), &o.transferState)
		}

		res := o.upload(ctx, t, folder, logger)
		if !res.IsSuccess() {
			o.cleanup(ctx, t, folder, logger)
		}

		return transferFailure(res, &o.transferState)
	})
}

func (o *ChunkedUpload) chunkSize() int64 {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}

	return o.ChunkSize
}

// upload sends every chunk and assembles the file.
func (o *ChunkedUpload) upload(ctx context.Context, t Transport, folder string, logger *slog.Logger) *Result[*UploadInfo] {
	body, err := o.Source.Open()
	if err != nil {
		return fromError[*UploadInfo](err)
	}
	defer body.Close()

	size := o.Source.Size()
	if size == 0 {
		if err := checkEmpty(body); err != nil {
			return fromError[*UploadInfo](err)
		}
	}

	in := bufio.NewReader(body)
	pr := &progressReader{r: in, state: &o.transferState, name: path.Base(o.RemotePath), total: size}

	if size > 0 {
		pr.r = newSizedReader(in, size)
	}

	chunk := o.chunkSize()

	for offset := int64(0); ; offset += chunk {
		if offset > 0 {
			more, err := hasMore(in, offset, size)
			if err != nil {
				return fromError[*UploadInfo](err)
			}

			if !more {
				break
			}
		}

		n := int64(-1)
		if size >= 0 {
			n = min(chunk, size-offset)
		}

		logger.Debug("uploading chunk",
			slog.Int64("offset", offset),
			slog.Int64("length", n),
			slog.Int64("total", size),
		)

		req := &davclient.Request{
			Method:  http.MethodPut,
			URL:     davclient.JoinURL(t.UploadsRoot(), path.Join(folder, chunkName(offset))),
			Header:  http.Header{headerContentType: {defaultMimeType}},
			NoRetry: true,
		}

		switch {
		case n > 0:
			req.Body, req.ContentLength = io.LimitReader(pr, n), n
		case n < 0:
			req.Body, req.ContentLength = io.LimitReader(pr, chunk), -1
		}

		put := simple(ctx, t, req, http.StatusCreated, http.StatusNoContent)
		if !put.IsSuccess() {
			return convert[*UploadInfo](put)
		}
	}

	sent := pr.transferred

	h := http.Header{}
	h.Set(headerTotalLength, strconv.FormatInt(sent, 10))

	if mt := o.Source.ModTime(); !mt.IsZero() {
		h.Set(headerMtime, strconv.FormatInt(mt.Unix(), 10))
	}

	if o.RequiredETag != "" {
		h.Set(headerIfMatch, quoteETag(o.RequiredETag))
	}

	mv := &Move{
		SourcePath: path.Join(folder, assembledName),
		TargetPath: o.RemotePath,
		Overwrite:  true,
		SourceRoot: t.UploadsRoot(),
		TargetRoot: t.FilesRoot(),
		header:     h,
	}

	moved, respHeader := mv.move(ctx, t)

	res := convert[*UploadInfo](moved)
	if res.IsSuccess() {
		res.Data = uploadInfo(respHeader, sent)
	}

	return res
}

// cleanup removes the transfer folder. It runs detached from ctx so a
// cancelled upload still cleans up.
func (o *ChunkedUpload) cleanup(ctx context.Context, t Transport, folder string, logger *slog.Logger) {
	rm := (&Remove{RemotePath: folder, SourceRoot: t.UploadsRoot()}).Run(context.WithoutCancel(ctx), t)

	if !rm.IsSuccess() {
		logger.Warn("failed to remove transfer folder",
			slog.String("folder", folder),
			slog.String("code", rm.Code.String()),
		)
	}
}

// hasMore reports whether content remains past offset. A known size decides
// without reading; otherwise the next byte is peeked.
func hasMore(in *bufio.Reader, offset, size int64) (bool, error) {
	if size >= 0 {
		return offset < size, nil
	}

	if _, err := in.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// chunkName is the zero-padded byte offset ownCloud orders chunks by.
func chunkName(offset int64) string {
	return fmt.Sprintf("%015d", offset)
}
