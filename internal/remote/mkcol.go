package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/tonimelisma/ocdav/internal/davclient"
)

// CreateFolder creates a remote folder with MKCOL. When the parent is missing
// (409) and CreateFullPath is set, the parent chain is created first and the
// MKCOL retried once.
type CreateFolder struct {
	RemotePath     string
	CreateFullPath bool
	// IsChunksFolder targets the uploads root instead of the files root.
	IsChunksFolder bool
}

func (o *CreateFolder) Run(ctx context.Context, t Transport) *Result[struct{}] {
	return run(t, "create_folder", []any{
		slog.String("path", o.RemotePath),
		slog.Bool("full_path", o.CreateFullPath),
		slog.Bool("chunks", o.IsChunksFolder),
	}, func(logger *slog.Logger) *Result[struct{}] {
		return o.create(ctx, t, logger)
	})
}

func (o *CreateFolder) create(ctx context.Context, t Transport, logger *slog.Logger) *Result[struct{}] {
	if !validRemotePath(o.RemotePath) || o.RemotePath == "/" {
		return withCode[struct{}](CodeInvalidRemotePath, fmt.Errorf("%w: %q", ErrInvalidRemotePath, o.RemotePath))
	}

	res := o.mkcol(ctx, t)
	if res.Code != CodeConflict || !o.CreateFullPath {
		return res
	}

	parent := path.Dir(o.RemotePath)
	if parent == "/" {
		return res
	}

	logger.Debug("parent missing, creating it first", slog.String("parent", parent))

	parentOp := &CreateFolder{RemotePath: parent, CreateFullPath: true, IsChunksFolder: o.IsChunksFolder}
	if parentRes := parentOp.create(ctx, t, logger); !parentRes.IsSuccess() {
		return parentRes
	}

	return o.mkcol(ctx, t)
}

func (o *CreateFolder) mkcol(ctx context.Context, t Transport) *Result[struct{}] {
	root := t.FilesRoot()
	if o.IsChunksFolder {
		root = t.UploadsRoot()
	}

	return simple(ctx, t, &davclient.Request{
		Method:  methodMkcol,
		URL:     davclient.JoinURL(root, o.RemotePath),
		Timeout: mkcolTimeout,
	}, http.StatusCreated)
}
