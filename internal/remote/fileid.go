package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// GetPathForFileID resolves a file id to its remote path through the
// private-link endpoint /f/{id}. The server answers with a redirect to the web
// UI whose query carries the folder ("dir") and entry name ("scrollto").
type GetPathForFileID struct {
	FileID string
}

func (o *GetPathForFileID) Run(ctx context.Context, t Transport) *Result[string] {
	return run(t, "get_path_for_file_id", []any{slog.String("file_id", o.FileID)}, func(*slog.Logger) *Result[string] {
		if o.FileID == "" {
			return withCode[string](CodeFileNotFound, fmt.Errorf("remote: empty file id"))
		}

		resp, err := t.Execute(ctx, &davclient.Request{
			Method:  http.MethodHead,
			URL:     t.FileIDURL(o.FileID),
			Timeout: metaTimeout,
		})
		if err != nil {
			return fromError[string](err)
		}

		if !isRedirectStatus(resp.StatusCode) {
			return fromResponse[string](resp)
		}

		davclient.DrainAndClose(resp)

		res := &Result[string]{
			Code:       CodeOK,
			HTTPStatus: resp.StatusCode,
			RequestID:  resp.RequestID(),
		}

		p, err := pathFromLocation(resp.Header.Get(headerLocation))
		if err != nil {
			res.Code = CodeWrongServerResponse
			res.Err = err

			return res
		}

		res.Data = p

		return res
	})
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// pathFromLocation recovers a remote path from a private-link redirect.
func pathFromLocation(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: redirect without Location", ErrUnexpectedResponse)
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	q := u.Query()

	if dir := q.Get("dir"); dir != "" {
		p := path.Join("/", dir)
		if name := q.Get("scrollto"); name != "" {
			p = path.Join(p, name)
		}

		return p, nil
	}

	if p := q.Get("path"); p != "" {
		return path.Join("/", p), nil
	}

	return "", fmt.Errorf("%w: no path in Location %q", ErrUnexpectedResponse, location)
}

// GetMetaFile resolves a file id to the path the current user sees, using the
// meta endpoint's oc:meta-path-for-user property.
type GetMetaFile struct {
	FileID string
}

func (o *GetMetaFile) Run(ctx context.Context, t Transport) *Result[string] {
	return run(t, "get_meta_file", []any{slog.String("file_id", o.FileID)}, func(*slog.Logger) *Result[string] {
		if o.FileID == "" {
			return withCode[string](CodeFileNotFound, fmt.Errorf("remote: empty file id"))
		}

		resp, err := propfind(ctx, t, t.MetaURL(o.FileID), davclient.DepthZero, davclient.MetaProps, metaTimeout)
		if err != nil {
			return fromError[string](err)
		}

		res := fromResponse[string](resp, http.StatusOK, http.StatusMultiStatus)
		if !res.IsSuccess() {
			return res
		}

		defer resp.Body.Close()

		p, err := metaPath(resp)
		if err != nil {
			res.Code = codeForError(err)
			res.Err = err

			return res
		}

		res.Data = p

		return res
	})
}

func metaPath(resp *davclient.Response) (string, error) {
	ms, err := davclient.ParseMultistatus(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	for i := range ms.Responses {
		props, found := ms.Responses[i].AcceptedProps()
		if !found || props.MetaPathForUser == "" {
			continue
		}

		p := props.MetaPathForUser
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}

		return p, nil
	}

	return "", fmt.Errorf("%w: meta-path-for-user missing", ErrUnexpectedResponse)
}
