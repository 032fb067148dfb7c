package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ocdav/internal/remote"
)

func newBaseURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baseurl",
		Short: "Discover the effective server URL after redirects",
		Long: `Probe the files root, following redirects, and print the server URL the
final response came from together with whether the connection is secure.`,
		Args: cobra.NoArgs,
		RunE: runBaseURL,
	}
}

func newResolveIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve-id <file-id>",
		Short: "Find the path of a file from its id",
		Long: `Resolve a file id to its remote path. By default the private-link endpoint
is asked for a redirect; --meta reads the meta endpoint's path property instead.`,
		Args: cobra.ExactArgs(1),
		RunE: runResolveID,
	}

	cmd.Flags().Bool("meta", false, "resolve through the meta endpoint")

	return cmd
}

func runBaseURL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	res := (&remote.GetBaseURL{}).Run(ctx, s.Meta)
	if err := resultError("discovering base URL", res); err != nil {
		return err
	}

	redirects := []string{}
	for _, hop := range res.Redirections.Hops() {
		redirects = append(redirects, fmt.Sprintf("%d %s", hop.Status, hop.To))
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, map[string]any{
			"base_url":  res.Data,
			"security":  res.Code.String(),
			"redirects": redirects,
			"permanent": res.Redirections.LastPermanentLocation(),
		})
	}

	fmt.Fprintln(cc.Stdout, res.Data)

	switch res.Code {
	case remote.CodeOKNoSSL:
		cc.Statusf("Warning: connection is not encrypted\n")
	case remote.CodeOKRedirectToNonSecureConnection:
		cc.Statusf("Warning: server redirected from https to http\n")
	}

	for _, loc := range redirects {
		cc.Statusf("  redirect: %s\n", loc)
	}

	return nil
}

func runResolveID(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	fileID := args[0]
	useMeta, _ := cmd.Flags().GetBool("meta")

	s, err := cc.Session(ctx)
	if err != nil {
		return err
	}

	var res *remote.Result[string]
	if useMeta {
		res = (&remote.GetMetaFile{FileID: fileID}).Run(ctx, s.Meta)
	} else {
		res = (&remote.GetPathForFileID{FileID: fileID}).Run(ctx, s.Meta)
	}

	if err := resultError("resolving "+fileID, res); err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, map[string]string{"file_id": fileID, "path": res.Data})
	}

	fmt.Fprintln(cc.Stdout, res.Data)

	return nil
}
