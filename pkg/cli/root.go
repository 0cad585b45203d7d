// Package cli implements the kolbi command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"smartkeiba/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// exitError ends the process with code without printing anything more;
// the command has already reported the outcome.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	return handleError(rootCmd, rootCmd.Execute(), os.Stdout, os.Stderr)
}

func handleError(rootCmd *cobra.Command, err error, stdout, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	if output, _ := rootCmd.PersistentFlags().GetString("output"); output == "json" {
		_ = PrintJSON(stdout, map[string]string{"error": err.Error()})
	} else {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	output     outputFormat
	envFile    string
	configDir  string
	projectDir string
}

// loadConfig reads .env and the environment, applies flag overrides and
// builds the logger. Config warnings are logged once the logger exists.
func (o *rootOptions) loadConfig() (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if o.configDir != "" {
		cfg.ConfigDir = o.configDir
	}
	if o.projectDir != "" {
		cfg.ProjectDir = o.projectDir
	}
	logger := cfg.NewLogger()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "kolbi",
		Short:         "KOLBI source registry and delta exporter",
		Long:          "Resolves and declares KODB source tables and exports changed warehouse rows as CSV files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// flag > env > terminal detection
			if cmd.Flags().Changed("output") {
				return nil
			}
			v := os.Getenv("KOLBI_OUTPUT")
			if v == "" {
				v = defaultOutput(cmd.OutOrStdout())
			}
			if err := cmd.Root().PersistentFlags().Set("output", v); err != nil {
				return fmt.Errorf("KOLBI_OUTPUT: %w", err)
			}
			return nil
		},
	}

	opts.output = "table"
	rootCmd.PersistentFlags().VarP(&opts.output, "output", "o", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Declarative configuration directory (default $CONFIG_DIR or ./kolbi-config)")
	rootCmd.PersistentFlags().StringVar(&opts.projectDir, "project-dir", "", "Directory holding workflow_settings.yaml or dataform.json (default $PROJECT_DIR or .)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newSourcesCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
