package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ocdav/internal/ledger"
	"github.com/tonimelisma/ocdav/internal/remote"
	"github.com/tonimelisma/ocdav/internal/session"
)

// errVerifyMismatch makes the process exit non-zero after a report that
// found differences. The report itself is the output.
var errVerifyMismatch = errors.New("verify: remote files changed")

// Verification outcomes.
const (
	verifyUnchanged = "unchanged"
	verifyChanged   = "changed"
	verifyMissing   = "missing"
	verifyUntracked = "untracked"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [remote-path]...",
		Short: "Compare ledger ETags with the server",
		Long: `Compare the ETags recorded by past transfers with the server's current ones.
Without arguments every recorded path is checked.

Exit code 0 if nothing changed; exit code 2 if any file changed or is missing.`,
		RunE: runVerify,
	}
}

// verifyRow is one line of the verify report.
type verifyRow struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Recorded string `json:"recorded_etag,omitempty"`
	Current  string `json:"current_etag,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	if !cc.Cfg.LedgerEnabled {
		return errors.New("the ledger is disabled ([ledger] enabled = false)")
	}

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	store, err := cc.Ledger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := verifyPaths(ctx, s, store, args)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		if err := printJSON(cc.Stdout, rows); err != nil {
			return err
		}
	} else {
		printVerifyTable(cc, rows)
	}

	for _, r := range rows {
		if r.Status == verifyChanged || r.Status == verifyMissing {
			return errVerifyMismatch
		}
	}

	return nil
}

// verifyPaths checks each path, or every ledger entry when paths is empty.
func verifyPaths(ctx context.Context, s *session.Session, store *ledger.Store, paths []string) ([]verifyRow, error) {
	var entries []ledger.Entry

	if len(paths) == 0 {
		all, err := store.List(ctx)
		if err != nil {
			return nil, err
		}

		entries = all
	} else {
		for _, arg := range paths {
			p := remotePathArg(arg)

			e, err := store.Get(ctx, p)
			if err != nil {
				return nil, err
			}

			if e == nil {
				e = &ledger.Entry{RemotePath: p}
			}

			entries = append(entries, *e)
		}
	}

	rows := make([]verifyRow, 0, len(entries))

	for _, e := range entries {
		row, err := verifyEntry(ctx, s, e)
		if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func verifyEntry(ctx context.Context, s *session.Session, e ledger.Entry) (verifyRow, error) {
	row := verifyRow{Path: e.RemotePath, Recorded: e.ETag}
	if e.ETag == "" {
		row.Status = verifyUntracked
		return row, nil
	}

	res := (&remote.ReadFile{RemotePath: e.RemotePath, SpaceURL: s.SpaceURL()}).Run(ctx, s.Meta)

	switch {
	case res.Code == remote.CodeFileNotFound:
		row.Status = verifyMissing
	case !res.IsSuccess():
		return row, resultError("reading "+e.RemotePath, res)
	case res.Data.ETag == e.ETag:
		row.Status = verifyUnchanged
		row.Current = res.Data.ETag
	default:
		row.Status = verifyChanged
		row.Current = res.Data.ETag
	}

	return row, nil
}

func printVerifyTable(cc *CLIContext, rows []verifyRow) {
	if len(rows) == 0 {
		fmt.Fprintln(cc.Stdout, "Nothing recorded.")
		return
	}

	table := make([][]string, len(rows))
	for i, r := range rows {
		table[i] = []string{r.Path, r.Status, r.Recorded, r.Current}
	}

	printTable(cc.Stdout, []string{"PATH", "STATUS", "RECORDED", "CURRENT"}, table)
}
