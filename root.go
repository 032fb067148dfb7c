package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ocdav/internal/config"
	"github.com/tonimelisma/ocdav/internal/ledger"
	"github.com/tonimelisma/ocdav/internal/remote"
	"github.com/tonimelisma/ocdav/internal/session"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// skipConfigCommands lists commands that run without a resolved server
// configuration. Matched by CommandPath().
var skipConfigCommands = map[string]bool{
	"ocdav config init": true,
}

// CLIFlags mirrors the persistent flags for the running command.
type CLIFlags struct {
	JSON    bool
	Verbose bool
	Quiet   bool
}

// CLIContext carries everything a subcommand needs. Built once by
// PersistentPreRunE and stored in the command context.
type CLIContext struct {
	Cfg    *config.Resolved
	Logger *slog.Logger
	Flags  CLIFlags

	Stdout io.Writer
	Stderr io.Writer
	// Interactive is true when stderr is a terminal; progress is only
	// rendered then.
	Interactive bool

	provider *session.Provider
}

type cliContextKey struct{}

// cliContextFrom returns the CLIContext stored by the root pre-run, or nil.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

// mustCLIContext is cliContextFrom for commands that always load config.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("ocdav: command ran without a CLI context")
	}

	return cc
}

// newRootCmd builds the fully-assembled root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ocdav",
		Short:   "ownCloud WebDAV client",
		Long:    "Remote file operations and transfers against ownCloud-compatible WebDAV servers.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newExistsCmd())
	cmd.AddCommand(newMkdirCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newCpCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newBaseURLCmd())
	cmd.AddCommand(newResolveIDCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores a CLIContext in the command's context.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	// Flags win over the file; quiet wins over verbose.
	switch {
	case flagQuiet:
		cli.LogLevel = "error"
	case flagVerbose:
		cli.LogLevel = "debug"
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(resolved, cmd.ErrOrStderr())

	cc := &CLIContext{
		Cfg:         resolved,
		Logger:      logger,
		Flags:       CLIFlags{JSON: flagJSON, Verbose: flagVerbose, Quiet: flagQuiet},
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		Interactive: isTerminal(cmd.ErrOrStderr()),
		provider:    session.NewProvider(resolved, logger),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates the logger for a run. Level and format come from the
// resolved config, which already includes --verbose and --quiet.
func buildLogger(r *config.Resolved, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if r != nil {
		opts.Level = r.LogLevel
	}

	if r != nil && r.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Session returns an authenticated session for the configured account.
func (cc *CLIContext) Session(ctx context.Context) (*session.Session, error) {
	return cc.provider.Session(ctx, cc.Cfg)
}

// Ledger opens the ETag ledger, or returns nil when it is disabled. The
// caller closes a non-nil store.
func (cc *CLIContext) Ledger(ctx context.Context) (*ledger.Store, error) {
	if !cc.Cfg.LedgerEnabled {
		return nil, nil //nolint:nilnil // disabled ledger is not an error
	}

	store, err := ledger.Open(ctx, cc.Cfg.LedgerPath, cc.account(), cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	return store, nil
}

// account identifies the ledger scope. A space root is its own namespace.
func (cc *CLIContext) account() string {
	if cc.Cfg.SpaceURL != "" {
		return cc.Cfg.SpaceURL
	}

	return cc.Cfg.UserID + "@" + cc.Cfg.ServerURL
}

// resultError turns a failed operation result into an error, or nil.
func resultError[T any](what string, res *remote.Result[T]) error {
	if res.IsSuccess() {
		return nil
	}

	err := &opError{Code: res.Code, Status: res.HTTPStatus, Err: res.Err}

	return fmt.Errorf("%s: %w", what, err)
}

// opError carries a result code through the error chain so main can pick
// an exit status.
type opError struct {
	Code   remote.ResultCode
	Status int
	Err    error
}

func (e *opError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
	default:
		return string(e.Code)
	}
}

func (e *opError) Unwrap() error { return e.Err }

// Exit statuses beyond the generic failure.
const (
	exitFailure   = 1
	exitMismatch  = 2
	exitCancelled = 130
)

// exitCode maps an error returned by a command to a process exit status.
func exitCode(err error) int {
	var oe *opError
	if errors.As(err, &oe) && oe.Code == remote.CodeCancelled {
		return exitCancelled
	}

	if errors.Is(err, errVerifyMismatch) {
		return exitMismatch
	}

	return exitFailure
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}
