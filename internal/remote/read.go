package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// ReadFile fetches the metadata of a single remote file or folder
// (PROPFIND depth 0).
type ReadFile struct {
	RemotePath string
	// SpaceURL replaces the user's files root when set.
	SpaceURL string
}

func (o *ReadFile) Run(ctx context.Context, t Transport) *Result[*RemoteFile] {
	return run(t, "read_file", []any{slog.String("path", o.RemotePath)}, func(*slog.Logger) *Result[*RemoteFile] {
		res := readProps(ctx, t, o.RemotePath, o.SpaceURL, davclient.DepthZero)
		if !res.IsSuccess() {
			return convert[*RemoteFile](res)
		}

		out := convert[*RemoteFile](res)
		out.Data = res.Data[0]

		return out
	})
}

// ReadFolder lists a remote folder (PROPFIND depth 1). Element 0 of the data
// is the folder itself; its children follow in server order.
type ReadFolder struct {
	RemotePath string
	SpaceURL   string
}

func (o *ReadFolder) Run(ctx context.Context, t Transport) *Result[[]*RemoteFile] {
	return run(t, "read_folder", []any{slog.String("path", o.RemotePath)}, func(*slog.Logger) *Result[[]*RemoteFile] {
		return readProps(ctx, t, o.RemotePath, o.SpaceURL, davclient.DepthOne)
	})
}

// readProps runs a PROPFIND and maps every entry to a RemoteFile, moving the
// entry for remotePath itself to the front.
func readProps(ctx context.Context, t Transport, remotePath, spaceURL, depth string) *Result[[]*RemoteFile] {
	if !validRemotePath(remotePath) {
		return withCode[[]*RemoteFile](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, remotePath))
	}

	root := resolveRoot(spaceURL, t.FilesRoot())

	resp, err := propfind(ctx, t, davclient.JoinURL(root, remotePath), depth, davclient.FileProps, readTimeout)
	if err != nil {
		return fromError[[]*RemoteFile](err)
	}

	res := fromResponse[[]*RemoteFile](resp, http.StatusOK, http.StatusMultiStatus)
	if !res.IsSuccess() {
		return res
	}

	defer resp.Body.Close()

	files, err := parseFiles(resp, root, remotePath)
	if err != nil {
		res.Code = codeForError(err)
		res.Err = err

		return res
	}

	res.Data = files

	return res
}

func parseFiles(resp *davclient.Response, root, remotePath string) ([]*RemoteFile, error) {
	ms, err := davclient.ParseMultistatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	if len(ms.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty multistatus", ErrUnexpectedResponse)
	}

	want := path.Clean(remotePath)
	files := make([]*RemoteFile, 0, len(ms.Responses))
	self := -1

	for i := range ms.Responses {
		f, err := newRemoteFile(root, &ms.Responses[i])
		if err != nil {
			return nil, err
		}

		if self < 0 && f.RemotePath == want {
			self = len(files)
		}

		files = append(files, f)
	}

	if self > 0 {
		f := files[self]
		copy(files[1:self+1], files[:self])
		files[0] = f
	}

	return files, nil
}
