package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/ocdav/internal/ledger"
	"github.com/tonimelisma/ocdav/internal/remote"
	"github.com/tonimelisma/ocdav/internal/session"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote-path>...",
		Short: "Download remote files",
		Long: `Download one or more remote files. Each file lands at <dir>/<remote-path>,
so the remote folder structure is recreated below --dir. Files download in
parallel up to transfers.parallel_downloads; the first failure cancels the rest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runGet,
	}

	cmd.Flags().String("dir", ".", "local folder to download into")

	return cmd
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> <remote-path>",
		Short: "Upload a file",
		Long: `Upload a local file. A remote path ending in "/" keeps the local file name.

Unless --force is given the upload is conditional: the ETag recorded by the
last transfer of the same path (or --if-match) must still match, so edits
made on the server in the meantime are not overwritten.

Files larger than transfers.chunking_threshold are uploaded in chunks of
transfers.chunk_size; --chunked forces it.`,
		Args: cobra.ExactArgs(2),
		RunE: runPut,
	}

	cmd.Flags().String("if-match", "", "only replace the remote file if its ETag matches")
	cmd.Flags().Bool("force", false, "replace the remote file unconditionally")
	cmd.Flags().Bool("chunked", false, "always use a chunked upload")
	cmd.Flags().Bool("checksum", true, "send a SHA1 checksum for server-side verification")
	cmd.MarkFlagsMutuallyExclusive("if-match", "force")

	return cmd
}

// downloadJSON is the JSON output schema for one completed download.
type downloadJSON struct {
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path"`
	ETag       string `json:"etag,omitempty"`
	Size       int64  `json:"size"`
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	dir, _ := cmd.Flags().GetString("dir")

	localFolder, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	store, err := cc.Ledger(ctx)
	if err != nil {
		return err
	}

	if store != nil {
		defer store.Close()
	}

	var board *progressBoard
	if cc.Interactive && !cc.Flags.Quiet {
		board = newProgressBoard(cc.Stderr, "Downloading")
		defer board.finish()
	}

	results := make([]downloadJSON, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cc.Cfg.ParallelDownloads, 1))

	for i, arg := range args {
		remotePath := remotePathArg(arg)

		g.Go(func() error {
			info, err := downloadOne(gctx, cc, s, store, board, remotePath, localFolder)
			if err != nil {
				return err
			}

			results[i] = downloadJSON{
				RemotePath: remotePath,
				LocalPath:  info.LocalPath,
				ETag:       info.ETag,
				Size:       info.Size,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, results)
	}

	for _, r := range results {
		cc.Statusf("Downloaded %s (%s)\n", r.LocalPath, formatSize(r.Size))
	}

	return nil
}

func downloadOne(
	ctx context.Context, cc *CLIContext, s *session.Session, store *ledger.Store,
	board *progressBoard, remotePath, localFolder string,
) (*remote.DownloadInfo, error) {
	op := &remote.Download{RemotePath: remotePath, LocalFolder: localFolder, SpaceURL: s.SpaceURL()}
	if board != nil {
		op.AddProgressListener(board.listener(remotePath))
	}

	stop := cancelOnDone(ctx, op)
	res := op.Run(ctx, s.Transfer)
	stop()

	if err := resultError("downloading "+remotePath, res); err != nil {
		return nil, err
	}

	info := res.Data

	if store != nil && info.ETag != "" {
		err := store.Record(ctx, ledger.Entry{
			RemotePath: remotePath,
			ETag:       info.ETag,
			ModTime:    info.ModifiedTime,
			Size:       info.Size,
		})
		if err != nil {
			return nil, err
		}
	}

	cc.Logger.Debug("download recorded", "remote_path", remotePath, "local_path", info.LocalPath)

	return info, nil
}

// uploadOp is satisfied by both the single-request and the chunked upload.
type uploadOp interface {
	canceller
	AddProgressListener(l remote.ProgressListener) remote.ListenerID
	Run(ctx context.Context, t remote.Transport) *remote.Result[*remote.UploadInfo]
}

// uploadJSON is the JSON output schema for a completed upload.
type uploadJSON struct {
	RemotePath  string `json:"remote_path"`
	ETag        string `json:"etag,omitempty"`
	RemoteID    string `json:"remote_id,omitempty"`
	Size        int64  `json:"size"`
	Chunked     bool   `json:"chunked"`
	Conditional bool   `json:"conditional"`
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	localPath := args[0]

	ifMatch, _ := cmd.Flags().GetString("if-match")
	force, _ := cmd.Flags().GetBool("force")
	forceChunked, _ := cmd.Flags().GetBool("chunked")
	checksum, _ := cmd.Flags().GetBool("checksum")

	src, err := remote.NewFileSource(localPath)
	if err != nil {
		return fmt.Errorf("reading local file: %w", err)
	}

	remotePath := remotePathArg(args[1])
	if strings.HasSuffix(args[1], "/") {
		remotePath = path.Join(remotePath, src.Name())
	}

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	store, err := cc.Ledger(ctx)
	if err != nil {
		return err
	}

	if store != nil {
		defer store.Close()
	}

	requiredETag := remote.NormalizeETag(ifMatch)
	if requiredETag == "" && !force && store != nil {
		entry, err := store.Get(ctx, remotePath)
		if err != nil {
			return err
		}

		if entry != nil {
			requiredETag = entry.ETag
		}
	}

	chunked, err := useChunked(cc, s, src.Size(), forceChunked)
	if err != nil {
		return err
	}

	var op uploadOp
	if chunked {
		op = &remote.ChunkedUpload{
			Source:       src,
			RemotePath:   remotePath,
			RequiredETag: requiredETag,
			ChunkSize:    cc.Cfg.ChunkSize,
		}
	} else {
		op = &remote.Upload{
			Source:       src,
			RemotePath:   remotePath,
			MimeType:     mime.TypeByExtension(filepath.Ext(localPath)),
			RequiredETag: requiredETag,
			Checksum:     checksum,
			SpaceURL:     s.SpaceURL(),
		}
	}

	if cc.Interactive && !cc.Flags.Quiet {
		board := newProgressBoard(cc.Stderr, "Uploading")
		op.AddProgressListener(board.listener(remotePath))

		defer board.finish()
	}

	cc.Logger.Debug("put",
		"local_path", localPath,
		"remote_path", remotePath,
		"size", src.Size(),
		"chunked", chunked,
		"conditional", requiredETag != "",
	)

	stop := cancelOnDone(ctx, op)
	res := op.Run(ctx, s.Transfer)
	stop()

	if res.Code == remote.CodeInvalidOverwrite && requiredETag != "" {
		cc.Statusf("%s changed on the server since it was last transferred; download it again or use --force\n", remotePath)
	}

	if err := resultError("uploading "+localPath, res); err != nil {
		return err
	}

	info := res.Data
	if err := recordUpload(ctx, store, remotePath, src.ModTime(), info); err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, uploadJSON{
			RemotePath:  remotePath,
			ETag:        info.ETag,
			RemoteID:    info.RemoteID,
			Size:        info.Size,
			Chunked:     chunked,
			Conditional: requiredETag != "",
		})
	}

	cc.Statusf("Uploaded %s -> %s (%s)\n", localPath, remotePath, formatSize(info.Size))

	return nil
}

// errChunkedSpace is returned when a chunked upload is forced against a
// space root, which has no uploads area.
var errChunkedSpace = errors.New("chunked uploads are not available for space_webdav_url roots")

// useChunked decides between a single PUT and a chunked upload.
func useChunked(cc *CLIContext, s *session.Session, size int64, forced bool) (bool, error) {
	if s.SpaceURL() != "" {
		if forced {
			return false, errChunkedSpace
		}

		return false, nil
	}

	if forced {
		return true, nil
	}

	return cc.Cfg.ChunkSize > 0 && size > cc.Cfg.ChunkingThreshold, nil
}

// recordUpload stores the new ETag, or drops a stale entry when the server
// did not report one.
func recordUpload(ctx context.Context, store *ledger.Store, remotePath string, modTime time.Time, info *remote.UploadInfo) error {
	if store == nil {
		return nil
	}

	if info.ETag == "" {
		_, err := store.Forget(ctx, remotePath)
		return err
	}

	return store.Record(ctx, ledger.Entry{
		RemotePath: remotePath,
		ETag:       info.ETag,
		RemoteID:   info.RemoteID,
		ModTime:    modTime,
		Size:       info.Size,
	})
}
