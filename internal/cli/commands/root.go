package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/cli/config"
	"github.com/conduit-lang/tablemap/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	configPath string
	noColor    bool
}

// load reads the configuration and builds the logger and printer of a command
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *zap.Logger, *ui.Printer, error) {
	printer := ui.NewPrinter(cmd.OutOrStdout(), o.noColor)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, printer, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, printer, err
	}
	return cfg, logger, printer, nil
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "tablemap",
		Short: "Table mapping toolkit",
		Long: color.CyanString(`tablemap - table metadata and identity mapping

Maps components to database tables, resolves the relations between them
and keeps one record instance per row.

This tool manages the databases and caches used by the mapper.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default tablemap.yml in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewClearCacheCommand(opts))
	rootCmd.AddCommand(NewDBCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the tablemap version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)

			titleColor.Fprint(out, "tablemap version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
