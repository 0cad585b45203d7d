package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smartkeiba/internal/app"
	internaldb "smartkeiba/internal/db"
	"smartkeiba/internal/db/repository"
	"smartkeiba/internal/declarative"
	"smartkeiba/internal/domain"
	"smartkeiba/internal/manifest"
	"smartkeiba/internal/service/sources"
)

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Resolve and declare KODB source tables",
	}
	cmd.AddCommand(newSourcesResolveCmd(opts))
	cmd.AddCommand(newSourcesDeclareCmd(opts))
	cmd.AddCommand(newSourcesManifestCmd(opts))
	cmd.AddCommand(newSourcesPlanCmd(opts))
	cmd.AddCommand(newSourcesApplyCmd(opts))
	return cmd
}

func newSourcesResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the source tables each set resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			project, err := app.LoadProject(cfg)
			if err != nil {
				return err
			}
			svc := sources.NewService(project.Settings, project.Declarations.SourceSets, logger)
			decls, err := svc.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			return printDeclarations(cmd, decls)
		},
	}
}

func newSourcesDeclareCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "declare",
		Short: "Verify source tables in the warehouse and record their declarations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.NewSources(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			decls, err := a.Sources.Declare(cmd.Context())
			if err != nil {
				return err
			}
			return printDeclarations(cmd, decls)
		},
	}
}

func newSourcesManifestCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write the resolved sources as a dbt sources.yml document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			project, err := app.LoadProject(cfg)
			if err != nil {
				return err
			}

			w := manifest.NewWriter(cmd.OutOrStdout())
			if out != "-" {
				w = manifest.NewFileWriter(out)
			}
			svc := sources.NewService(project.Settings, project.Declarations.SourceSets, logger, w)
			decls, err := svc.Declare(cmd.Context())
			if err != nil {
				return err
			}
			if out != "-" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d source table(s) to %s\n", len(decls), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "-", "Manifest file to write; - writes to stdout")
	return cmd
}

func newSourcesPlanCmd(opts *rootOptions) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show changes between resolved sources and recorded declarations",
		Long:  "Resolves every source set, compares with the declarations in the metadata store and shows a plan. Exits 2 when there are changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSourcePlan(cmd, opts, func(_ *sources.Service, _ *repository.SourceDeclarationRepo, plan *declarative.Plan) error {
				if getOutputFormat(cmd) == "json" {
					if err := declarative.FormatJSON(cmd.OutOrStdout(), plan); err != nil {
						return fmt.Errorf("format plan: %w", err)
					}
				} else {
					declarative.FormatText(cmd.OutOrStdout(), plan, noColor || !isTerminal(cmd.OutOrStdout()))
				}
				if plan.HasChanges() {
					return &exitError{code: 2}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

func newSourcesApplyCmd(opts *rootOptions) *cobra.Command {
	var (
		autoApprove bool
		noColor     bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Record resolved sources in the metadata store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSourcePlan(cmd, opts, func(svc *sources.Service, repo *repository.SourceDeclarationRepo, plan *declarative.Plan) error {
				out := cmd.OutOrStdout()
				declarative.FormatText(out, plan, noColor || !isTerminal(out))
				if !plan.HasChanges() {
					return nil
				}

				if !autoApprove {
					if !isTerminal(os.Stdin) {
						return fmt.Errorf("confirmation required but stdin is not a terminal; use --auto-approve")
					}
					ok, err := confirm(cmd.InOrStdin(), out, "\nApply these changes? [y/N] ")
					if err != nil {
						return err
					}
					if !ok {
						_, _ = fmt.Fprintln(out, "Apply cancelled.")
						return nil
					}
				}

				if err := svc.Apply(cmd.Context(), repo, plan); err != nil {
					return err
				}
				s := plan.Summary()
				_, _ = fmt.Fprintf(out, "\nApply complete: %d created, %d updated, %d deleted.\n", s.Creates, s.Updates, s.Deletes)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip interactive confirmation prompt")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}

// withSourcePlan loads the project, opens the metadata store and computes
// the source plan before calling fn.
func withSourcePlan(cmd *cobra.Command, opts *rootOptions, fn func(*sources.Service, *repository.SourceDeclarationRepo, *declarative.Plan) error) error {
	cfg, logger, err := opts.loadConfig()
	if err != nil {
		return err
	}
	project, err := app.LoadProject(cfg)
	if err != nil {
		return err
	}
	store, err := internaldb.Open(cmd.Context(), cfg.MetaDBPath, 1)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	repo := repository.NewSourceDeclarationRepo(store.Write)
	svc := sources.NewService(project.Settings, project.Declarations.SourceSets, logger)
	plan, err := svc.Plan(cmd.Context(), repo)
	if err != nil {
		return err
	}
	return fn(svc, repo, plan)
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	_, _ = fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}

func printDeclarations(cmd *cobra.Command, decls []domain.SourceDeclaration) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), decls)
	}
	rows := make([][]string, 0, len(decls))
	for _, d := range decls {
		rows = append(rows, []string{d.SourceSet, d.LogicalName, d.QualifiedName()})
	}
	PrintTable(cmd.OutOrStdout(), []string{"set", "table", "location"}, rows)
	return nil
}
