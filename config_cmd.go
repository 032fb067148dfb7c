package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ocdav/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a commented starter config file to --config, $` + config.EnvConfig + `, or the
default location. An existing file is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	cmd.Flags().String("server", "", "server URL, for example https://cloud.example.com")
	cmd.Flags().String("user", "", "WebDAV user id")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return printJSON(cc.Stdout, cc.Cfg)
	}

	return config.RenderEffective(cc.Cfg, cc.Stdout)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	server, _ := cmd.Flags().GetString("server")
	user, _ := cmd.Flags().GetString("user")

	path := flagConfigPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}

	if path == "" {
		path = config.DefaultConfigPath()
	}

	logger := buildLogger(nil, cmd.ErrOrStderr())

	if err := config.WriteInitial(path, server, user, logger); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return errors.New(path + " already exists; edit it or pass --config")
		}

		return err
	}

	if !flagQuiet {
		cmd.PrintErrf("Wrote %s\n", path)
	}

	return nil
}
