package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/lpkg/internal/app"
	"go.trai.ch/lpkg/internal/ui/report"
)

func (c *CLI) newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh [books...]",
		Short: "Refresh the source manifests and re-resolve stored records",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			r, err := c.app.Refresh(cmd.Context(), args, app.RefreshOptions{Force: force})
			return finish(cmd, r, err)
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Fetch manifests even when the cache is fresh")
	return cmd
}

func (c *CLI) newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "harvest <book> <pages...>",
		Short:   "Harvest package records from book pages",
		Example: "  lpkg harvest lfs chapter05/binutils-pass1.html chapter05/gcc-pass1.html",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			r, err := c.app.Harvest(cmd.Context(), args[0], args[1:], app.HarvestOptions{DryRun: dryRun})
			return finish(cmd, r, err)
		},
	}
	cmd.Flags().BoolP("dry-run", "n", false, "Print the draft records instead of storing them")
	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [book]",
		Short: "Validate stored package records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book := ""
			if len(args) == 1 {
				book = args[0]
			}
			promote, _ := cmd.Flags().GetBool("promote")
			r, err := c.app.Validate(cmd.Context(), book, app.ValidateOptions{Promote: promote})
			return finish(cmd, r, err)
		},
	}
	cmd.Flags().Bool("promote", false, "Promote eligible records to ready and records with issues to issues-open")
	return cmd
}

func (c *CLI) newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the package index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compact, _ := cmd.Flags().GetBool("compact")
			summary, err := c.app.Index(cmd.Context(), app.IndexOptions{Compact: compact})
			if err != nil {
				return err
			}
			return report.RenderIndex(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().Bool("compact", false, "Write the index without indentation")
	return cmd
}
