package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ocdav/internal/config"
	"github.com/tonimelisma/ocdav/internal/remote"
	"github.com/tonimelisma/ocdav/internal/tokenfile"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check the configured credentials against the server",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved bearer token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Server   string `json:"server"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Auth     string `json:"auth"`
	Space    string `json:"space,omitempty"`
	Valid    bool   `json:"valid"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	// Probe below the login name: it validates the credentials even when
	// the configured user id is wrong.
	res := (&remote.CheckPathExistence{RemotePath: "/", IsUserLogged: false}).Run(ctx, s.Meta)
	if !res.IsSuccess() && res.Code != remote.CodeUnauthorized {
		return resultError("checking credentials", res)
	}

	out := whoamiOutput{
		Server:   cc.Cfg.ServerURL,
		UserID:   cc.Cfg.UserID,
		Username: cc.Cfg.Username,
		Auth:     "basic",
		Space:    cc.Cfg.SpaceURL,
		Valid:    res.Data,
	}

	if cc.Cfg.TokenFile != "" {
		out.Auth = "bearer"
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, out)
	}

	w := cc.Stdout
	fmt.Fprintf(w, "Server:    %s\n", out.Server)
	fmt.Fprintf(w, "User ID:   %s\n", out.UserID)
	fmt.Fprintf(w, "Username:  %s\n", out.Username)
	fmt.Fprintf(w, "Auth:      %s\n", out.Auth)

	if out.Space != "" {
		fmt.Fprintf(w, "Space:     %s\n", out.Space)
	}

	if !out.Valid {
		return errors.New("the server rejected the configured credentials")
	}

	fmt.Fprintln(w, "Credentials are valid.")

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Cfg.TokenFile == "" {
		return errors.New("no token_file configured; basic credentials come from " + config.EnvPassword)
	}

	if err := tokenfile.Remove(cc.Cfg.TokenFile); err != nil {
		return err
	}

	cc.Logger.Info("token removed", "path", cc.Cfg.TokenFile)
	cc.Statusf("Logged out.\n")

	return nil
}
