package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

const (
	overwriteTrue  = "T"
	overwriteFalse = "F"
)

// Move moves a remote file or folder with MOVE. Moving a path onto itself
// succeeds without a request; moving it into its own descendant fails locally.
// A 412 from the server means the target exists and maps to INVALID_OVERWRITE.
type Move struct {
	SourcePath string
	TargetPath string
	Overwrite  bool
	// SourceRoot and TargetRoot replace the user's files root when set, for
	// example to move a finished chunked upload out of the uploads root.
	SourceRoot string
	TargetRoot string

	// header carries extra request headers (chunked upload assembly).
	header http.Header
}

func (o *Move) Run(ctx context.Context, t Transport) *Result[struct{}] {
	return run(t, "move", []any{
		slog.String("source", o.SourcePath),
		slog.String("target", o.TargetPath),
	}, func(*slog.Logger) *Result[struct{}] {
		res, _ := o.move(ctx, t)
		return res
	})
}

// move performs the operation and also returns the response headers of a
// successful MOVE.
func (o *Move) move(ctx context.Context, t Transport) (*Result[struct{}], http.Header) {
	if res, done := checkTransferPaths(o.SourcePath, o.TargetPath, CodeInvalidMoveIntoDescendant); done {
		return res, nil
	}

	h := http.Header{}
	for k, vs := range o.header {
		h[k] = vs
	}

	h.Set(headerOverwrite, overwriteFalse)
	if o.Overwrite {
		h.Set(headerOverwrite, overwriteTrue)
	}

	resp, err := t.Execute(ctx, relocateRequest(t, methodMove, o.SourcePath, o.TargetPath,
		o.SourceRoot, o.TargetRoot, h))
	if err != nil {
		return fromError[struct{}](err), nil
	}

	res := remapPrecondition(fromResponse[struct{}](resp, http.StatusCreated, http.StatusNoContent))
	if !res.IsSuccess() {
		return res, nil
	}

	davclient.DrainAndClose(resp)

	return res, resp.Header
}

// Copy copies a remote file or folder with COPY. ForceOverride adds
// "Overwrite: T"; without it no Overwrite header is sent. On success Data is
// the new file's id when the server reports one.
type Copy struct {
	SourcePath    string
	TargetPath    string
	ForceOverride bool
	SourceRoot    string
	TargetRoot    string
}

func (o *Copy) Run(ctx context.Context, t Transport) *Result[string] {
	return run(t, "copy", []any{
		slog.String("source", o.SourcePath),
		slog.String("target", o.TargetPath),
		slog.Bool("force", o.ForceOverride),
	}, func(*slog.Logger) *Result[string] {
		if res, done := checkTransferPaths(o.SourcePath, o.TargetPath, CodeInvalidCopyIntoDescendant); done {
			return convert[string](res)
		}

		h := http.Header{}
		if o.ForceOverride {
			h.Set(headerOverwrite, overwriteTrue)
		}

		resp, err := t.Execute(ctx, relocateRequest(t, methodCopy, o.SourcePath, o.TargetPath,
			o.SourceRoot, o.TargetRoot, h))
		if err != nil {
			return fromError[string](err)
		}

		res := remapPrecondition(fromResponse[string](resp, http.StatusCreated, http.StatusNoContent))
		if res.IsSuccess() {
			davclient.DrainAndClose(resp)

			res.Data = resp.Header.Get(headerFileID)
		}

		return res
	})
}

// Rename renames a remote file or folder within its parent folder. Unlike
// Move it checks up front that the new name is free and fails with
// INVALID_OVERWRITE before sending MOVE when it is taken. Data is the new
// remote path.
type Rename struct {
	OldRemotePath string
	NewName       string
	SpaceURL      string
}

func (o *Rename) Run(ctx context.Context, t Transport) *Result[string] {
	return run(t, "rename", []any{
		slog.String("path", o.OldRemotePath),
		slog.String("new_name", o.NewName),
	}, func(logger *slog.Logger) *Result[string] {
		if !validRemotePath(o.OldRemotePath) || o.OldRemotePath == "/" {
			return withCode[string](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, o.OldRemotePath))
		}

		if !validName(o.NewName) {
			return withCode[string](CodeInvalidCharacterInName, fmt.Errorf("remote: invalid name %q", o.NewName))
		}

		newPath := path.Join(path.Dir(o.OldRemotePath), o.NewName)
		if o.NewName == path.Base(o.OldRemotePath) {
			return ok(newPath)
		}

		exists := probe(ctx, t, davclient.JoinURL(resolveRoot(o.SpaceURL, t.FilesRoot()), newPath))
		if exists.Data {
			logger.Info("rename target already exists", slog.String("target", newPath))
			return withCode[string](CodeInvalidOverwrite, fmt.Errorf("%w: %s", ErrTargetExists, newPath))
		}

		if exists.HTTPStatus == 0 {
			return convert[string](exists)
		}

		h := http.Header{}
		h.Set(headerOverwrite, overwriteFalse)

		req := relocateRequest(t, methodMove, o.OldRemotePath, newPath, o.SpaceURL, o.SpaceURL, h)

		res := convert[string](simple(ctx, t, req, http.StatusCreated, http.StatusNoContent))
		if res.IsSuccess() {
			res.Data = newPath
		}

		return res
	})
}

// Remove deletes a remote file or folder with DELETE.
type Remove struct {
	RemotePath string
	SourceRoot string
}

func (o *Remove) Run(ctx context.Context, t Transport) *Result[struct{}] {
	return run(t, "remove", []any{slog.String("path", o.RemotePath)}, func(*slog.Logger) *Result[struct{}] {
		if !validRemotePath(o.RemotePath) || o.RemotePath == "/" {
			return withCode[struct{}](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, o.RemotePath))
		}

		return simple(ctx, t, &davclient.Request{
			Method:  http.MethodDelete,
			URL:     davclient.JoinURL(resolveRoot(o.SourceRoot, t.FilesRoot()), o.RemotePath),
			Timeout: deleteTimeout,
		}, http.StatusOK, http.StatusNoContent)
	})
}

// checkTransferPaths validates a source/target pair. done is true when the
// returned result is final: invalid paths, identical paths (success), or a
// target inside the source.
func checkTransferPaths(source, target string, descendantCode ResultCode) (*Result[struct{}], bool) {
	if !validRemotePath(source) || !validRemotePath(target) {
		return withCode[struct{}](CodeInvalidRemotePath,
			fmt.Errorf("%w: %q -> %q", ErrInvalidRemotePath, source, target)), true
	}

	if source == target {
		return ok(struct{}{}), true
	}

	if strings.HasPrefix(target, source) {
		return withCode[struct{}](descendantCode, fmt.Errorf("%w: %s -> %s", ErrIntoDescendant, source, target)), true
	}

	return nil, false
}

func relocateRequest(
	t Transport, method, source, target, sourceRoot, targetRoot string, h http.Header,
) *davclient.Request {
	h.Set(headerDestination, davclient.JoinURL(resolveRoot(targetRoot, t.FilesRoot()), target))

	return &davclient.Request{
		Method:  method,
		URL:     davclient.JoinURL(resolveRoot(sourceRoot, t.FilesRoot()), source),
		Header:  h,
		Timeout: moveTimeout,
	}
}

// validName rejects empty names and names that would change the folder.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\")
}
