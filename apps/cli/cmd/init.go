package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/perchrh/ackhttp/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write .ackhttp.yaml with the default settings into the current directory.

Header values may reference environment variables as ${VAR}; they are expanded
when the config is loaded, after .env has been read.

Examples:
  ackhttp init
  ackhttp init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return writeStarterConfig(cmd, filepath.Join(cwd, config.ConfigFilenames[0]), forceInit)
}

func writeStarterConfig(cmd *cobra.Command, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
		}
	}

	cfg := config.DefaultConfig()
	cfg.Timeout = 30000
	cfg.RequestIDHeader = "X-Request-ID"
	cfg.Headers = map[string]string{
		"User-Agent": "ackhttp/" + version,
		"Accept":     "application/json",
	}

	if err := cfg.SaveConfig(path); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	return nil
}
