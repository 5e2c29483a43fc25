package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/lpkg/internal/app"
)

func (c *CLI) newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [ids...]",
		Short: "Generate build definitions from ready records",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			r, err := c.app.Generate(cmd.Context(), args, app.GenerateOptions{
				DryRun:    dryRun,
				Overwrite: overwrite,
			})
			return finish(cmd, r, err)
		},
	}
	cmd.Flags().BoolP("dry-run", "n", false, "Print the diff without writing anything")
	cmd.Flags().Bool("overwrite", false, "Replace definitions that were edited by hand")
	return cmd
}

const buildLong = `Build runs the generated definitions in dependency order. Packages are referenced
as <book>/<slug> or <book>/<slug>@<variant>; their dependencies are built first.`

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [packages...]",
		Short: "Build packages in dependency order",
		Long:  buildLong,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workers, _ := cmd.Flags().GetInt("workers")
			resume, _ := cmd.Flags().GetBool("resume")
			fetch, _ := cmd.Flags().GetBool("fetch")
			r, err := c.app.Build(cmd.Context(), args, app.BuildOptions{
				Workers: workers,
				Resume:  resume,
				Fetch:   fetch,
			})
			return finish(cmd, r, err)
		},
	}
	cmd.Flags().IntP("workers", "j", 0, "Number of packages built at once (defaults to the configured workers)")
	cmd.Flags().Bool("resume", false, "Skip completed phases of unchanged definitions")
	cmd.Flags().Bool("fetch", false, "Download sources before building each package")
	return cmd
}

func (c *CLI) newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [packages...]",
		Short: "Download and verify package sources",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.Fetch(cmd.Context(), args)
			return finish(cmd, r, err)
		},
	}
}
