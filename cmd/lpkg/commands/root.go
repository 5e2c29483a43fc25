// Package commands implements the CLI commands for the lpkg package pipeline.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/lpkg/internal/app"
	"go.trai.ch/lpkg/internal/build"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/lpkg/internal/ui/report"
)

// jsonSwitcher is implemented by loggers that can switch to JSON output.
type jsonSwitcher interface {
	SetJSON(enable bool)
}

// CLI represents the command line interface for lpkg.
type CLI struct {
	app     *app.App
	logger  ports.Logger
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App, log ports.Logger) *CLI {
	rootCmd := &cobra.Command{
		Use:           "lpkg",
		Short:         "Harvest, validate and build Linux From Scratch packages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to "+domain.ConfigFileName+" (discovered from the working directory by default)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	c := &CLI{
		app:     a,
		logger:  log,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		c.app.WithConfigPath(configPath)

		logJSON, err := cmd.Flags().GetBool("log-json")
		if err != nil {
			return err
		}
		if s, ok := c.logger.(jsonSwitcher); ok {
			s.SetJSON(logJSON)
		}
		return nil
	}

	rootCmd.AddCommand(c.newRefreshCmd())
	rootCmd.AddCommand(c.newHarvestCmd())
	rootCmd.AddCommand(c.newValidateCmd())
	rootCmd.AddCommand(c.newIndexCmd())
	rootCmd.AddCommand(c.newGenerateCmd())
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newFetchCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects reports, diffs and help output to w.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.app.WithOutput(w)
}

// finish renders the report, when there is one, and passes err through.
func finish(cmd *cobra.Command, r *domain.Report, err error) error {
	if r != nil {
		if renderErr := report.Render(cmd.OutOrStdout(), r); renderErr != nil {
			return renderErr
		}
	}
	return err
}
