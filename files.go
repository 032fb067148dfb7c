package main

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ocdav/internal/ledger"
	"github.com/tonimelisma/ocdav/internal/remote"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote folder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Display file or folder metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func newExistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exists <path>",
		Short: "Check whether a remote path exists",
		Long: `Check whether a remote path exists. Prints "true" or "false".

With --login-root the path is resolved below the login name instead of the
stable user id, which is how credentials are validated before the user id is
known.`,
		Args: cobra.ExactArgs(1),
		RunE: runExists,
	}

	cmd.Flags().Bool("login-root", false, "resolve the path below the login name")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}

	cmd.Flags().BoolP("parents", "p", false, "create missing parent folders")

	return cmd
}

func newMvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <source> <target>",
		Short: "Move a remote file or folder",
		Args:  cobra.ExactArgs(2),
		RunE:  runMv,
	}

	cmd.Flags().Bool("overwrite", false, "replace an existing target")

	return cmd
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <path> <new-name>",
		Short: "Rename a remote file or folder in place",
		Args:  cobra.ExactArgs(2),
		RunE:  runRename,
	}
}

func newCpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cp <source> <target>",
		Short: "Copy a remote file or folder",
		Args:  cobra.ExactArgs(2),
		RunE:  runCp,
	}

	cmd.Flags().Bool("force", false, "replace an existing target")

	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a remote file or folder",
		Long: `Delete a remote file or folder. Folder deletion is recursive. Depending on
the server, deleted items may be kept in its trash bin.`,
		Args: cobra.ExactArgs(1),
		RunE: runRm,
	}
}

// remotePathArg turns a user-supplied path into an absolute remote path.
// "" and "." mean the root.
func remotePathArg(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "." {
		return "/"
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}

// fileJSON is the JSON output schema for one remote file.
type fileJSON struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	IsFolder    bool   `json:"is_folder"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type,omitempty"`
	ModifiedAt  string `json:"modified_at,omitempty"`
	ETag        string `json:"etag,omitempty"`
	RemoteID    string `json:"remote_id,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Owner       string `json:"owner,omitempty"`
	PrivateLink string `json:"private_link,omitempty"`
}

func toFileJSON(f *remote.RemoteFile) fileJSON {
	out := fileJSON{
		Path:        f.RemotePath,
		Name:        f.Name(),
		IsFolder:    f.IsFolder(),
		Size:        displaySize(f),
		MimeType:    f.MimeType,
		ETag:        f.ETag,
		RemoteID:    f.RemoteID,
		Permissions: f.Permissions,
		Owner:       f.Owner,
		PrivateLink: f.PrivateLink,
	}

	if !f.ModifiedTime.IsZero() {
		out.ModifiedAt = f.ModifiedTime.UTC().Format(time.RFC3339)
	}

	return out
}

// displaySize is the content length for files and the recursive size for
// folders.
func displaySize(f *remote.RemoteFile) int64 {
	if f.IsFolder() {
		return f.Size
	}

	return f.Length
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	remotePath := "/"
	if len(args) > 0 {
		remotePath = remotePathArg(args[0])
	}

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.ReadFolder{RemotePath: remotePath, SpaceURL: s.SpaceURL()}).Run(ctx, s.Meta)
	if err := resultError("listing "+remotePath, res); err != nil {
		return err
	}

	entries := res.Data
	// The folder itself comes first; a file lists as itself.
	if len(entries) > 0 && entries[0].IsFolder() {
		entries = entries[1:]
	}

	if cc.Flags.JSON {
		out := make([]fileJSON, 0, len(entries))
		for _, f := range entries {
			out = append(out, toFileJSON(f))
		}

		return printJSON(cc.Stdout, out)
	}

	printFilesTable(cc, entries)

	return nil
}

func printFilesTable(cc *CLIContext, files []*remote.RemoteFile) {
	sorted := slices.Clone(files)
	slices.SortFunc(sorted, func(a, b *remote.RemoteFile) int {
		if a.IsFolder() != b.IsFolder() {
			if a.IsFolder() {
				return -1
			}

			return 1
		}

		return strings.Compare(a.Name(), b.Name())
	})

	rows := make([][]string, 0, len(sorted))

	for _, f := range sorted {
		name := f.Name()
		if f.IsFolder() {
			name += "/"
		}

		rows = append(rows, []string{name, formatSize(displaySize(f)), formatTime(f.ModifiedTime)})
	}

	printTable(cc.Stdout, []string{"NAME", "SIZE", "MODIFIED"}, rows)
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	remotePath := remotePathArg(args[0])

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.ReadFile{RemotePath: remotePath, SpaceURL: s.SpaceURL()}).Run(ctx, s.Meta)
	if err := resultError("reading "+remotePath, res); err != nil {
		return err
	}

	f := res.Data
	if cc.Flags.JSON {
		return printJSON(cc.Stdout, toFileJSON(f))
	}

	kind := "file"
	if f.IsFolder() {
		kind = "folder"
	}

	w := cc.Stdout
	fmt.Fprintf(w, "Path:        %s\n", f.RemotePath)
	fmt.Fprintf(w, "Type:        %s\n", kind)
	fmt.Fprintf(w, "Size:        %s (%d bytes)\n", formatSize(displaySize(f)), displaySize(f))
	fmt.Fprintf(w, "Modified:    %s\n", formatTime(f.ModifiedTime))
	fmt.Fprintf(w, "ETag:        %s\n", f.ETag)

	for _, line := range [][2]string{
		{"MIME type", f.MimeType},
		{"Remote ID", f.RemoteID},
		{"Permissions", f.Permissions},
		{"Owner", f.Owner},
		{"Link", f.PrivateLink},
	} {
		if line[1] != "" {
			fmt.Fprintf(w, "%-12s %s\n", line[0]+":", line[1])
		}
	}

	return nil
}

func runExists(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	remotePath := remotePathArg(args[0])
	loginRoot, _ := cmd.Flags().GetBool("login-root")

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.CheckPathExistence{
		RemotePath:   remotePath,
		IsUserLogged: !loginRoot,
		SpaceURL:     s.SpaceURL(),
	}).Run(ctx, s.Meta)

	if !res.IsSuccess() && res.Code != remote.CodeFileNotFound {
		return resultError("checking "+remotePath, res)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, map[string]any{"path": remotePath, "exists": res.Data})
	}

	fmt.Fprintln(cc.Stdout, res.Data)

	return nil
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	remotePath := remotePathArg(args[0])
	parents, _ := cmd.Flags().GetBool("parents")

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.CreateFolder{RemotePath: remotePath, CreateFullPath: parents}).Run(ctx, s.Meta)
	if err := resultError("creating "+remotePath, res); err != nil {
		return err
	}

	cc.Statusf("Created %s\n", remotePath)

	return nil
}

func runMv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	source, target := remotePathArg(args[0]), remotePathArg(args[1])
	overwrite, _ := cmd.Flags().GetBool("overwrite")

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.Move{
		SourcePath: source,
		TargetPath: target,
		Overwrite:  overwrite,
		SourceRoot: s.SpaceURL(),
		TargetRoot: s.SpaceURL(),
	}).Run(ctx, s.Meta)
	if err := resultError("moving "+source, res); err != nil {
		return err
	}

	if err := forgetPaths(ctx, cc, source, target); err != nil {
		return err
	}

	cc.Statusf("Moved %s -> %s\n", source, target)

	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	oldPath := remotePathArg(args[0])

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.Rename{OldRemotePath: oldPath, NewName: args[1], SpaceURL: s.SpaceURL()}).Run(ctx, s.Meta)
	if err := resultError("renaming "+oldPath, res); err != nil {
		return err
	}

	if res.Data != oldPath {
		if err := forgetPaths(ctx, cc, oldPath); err != nil {
			return err
		}
	}

	cc.Statusf("Renamed %s -> %s\n", oldPath, res.Data)

	return nil
}

func runCp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	source, target := remotePathArg(args[0]), remotePathArg(args[1])
	force, _ := cmd.Flags().GetBool("force")

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.Copy{
		SourcePath:    source,
		TargetPath:    target,
		ForceOverride: force,
		SourceRoot:    s.SpaceURL(),
		TargetRoot:    s.SpaceURL(),
	}).Run(ctx, s.Meta)
	if err := resultError("copying "+source, res); err != nil {
		return err
	}

	// An overwritten target has a new ETag the ledger never saw.
	if err := forgetPaths(ctx, cc, target); err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, map[string]string{"path": target, "remote_id": res.Data})
	}

	cc.Statusf("Copied %s -> %s\n", source, target)

	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	remotePath := remotePathArg(args[0])

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.Remove{RemotePath: remotePath, SourceRoot: s.SpaceURL()}).Run(ctx, s.Meta)
	if err := resultError("removing "+remotePath, res); err != nil {
		return err
	}

	if err := forgetPaths(ctx, cc, remotePath); err != nil {
		return err
	}

	cc.Statusf("Removed %s\n", remotePath)

	return nil
}

// forgetPaths drops ledger entries at and below each path.
func forgetPaths(ctx context.Context, cc *CLIContext, paths ...string) error {
	return withLedger(ctx, cc, func(store *ledger.Store) error {
		for _, p := range paths {
			if _, err := store.Forget(ctx, p); err != nil {
				return err
			}
		}

		return nil
	})
}

// withLedger runs fn against the ledger when it is enabled.
func withLedger(ctx context.Context, cc *CLIContext, fn func(*ledger.Store) error) error {
	store, err := cc.Ledger(ctx)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	return fn(store)
}
