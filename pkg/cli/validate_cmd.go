package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartkeiba/internal/config"
	"smartkeiba/internal/declarative"
	"smartkeiba/internal/service/sources"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var allowUnknownFields bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate declarative configuration files offline",
		Long:  "Reads YAML configuration files and the project settings, checks them for errors and resolves every source set without touching any store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// 1. Load desired state from YAML files.
			desired, err := declarative.LoadDirectoryWithOptions(cfg.ConfigDir, declarative.LoadOptions{
				AllowUnknownFields: allowUnknownFields,
			})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// 2. Validate the documents.
			var msgs []string
			for _, ve := range declarative.Validate(desired) {
				msgs = append(msgs, ve.Error())
			}

			// 3. Resolve the sources against the project settings.
			if len(msgs) == 0 {
				project, err := config.LoadProject(cfg.ProjectDir)
				if err != nil {
					return err
				}
				svc := sources.NewService(project, desired.SourceSets, logger)
				if _, err := svc.Resolve(cmd.Context()); err != nil {
					msgs = append(msgs, err.Error())
				}
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := PrintJSON(out, map[string]interface{}{
					"valid":  len(msgs) == 0,
					"errors": msgs,
				}); err != nil {
					return err
				}
			} else if len(msgs) > 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Configuration has %d validation error(s):\n", len(msgs))
				for _, m := range msgs {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", m)
				}
			} else {
				_, _ = fmt.Fprintln(out, "Configuration is valid.")
			}
			if len(msgs) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in declarative config")
	return cmd
}
