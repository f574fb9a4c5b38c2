package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/orm/dbal"
)

// NewDBCommand creates the db command
func NewDBCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database connection commands",
		Long: `Inspect the database connection configured for tablemap.

The connection is read from the database section of tablemap.yml and the
TABLEMAP_DATABASE_* environment variables.`,
		Example: `  # Check the configured connection
  tablemap db ping

  # Check a connection from the environment
  TABLEMAP_DATABASE_DRIVER=postgres TABLEMAP_DATABASE_DSN=postgres://localhost/app tablemap db ping`,
	}

	cmd.AddCommand(newDBPingCommand(global))

	return cmd
}

func newDBPingCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, printer, err := global.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dsn := redactDSN(cfg.Database.DSN)
			conn, err := dbal.Open(ctx, cfg.Database, dbal.WithLogger(logger))
			if err != nil {
				printer.Error("✗ Failed to connect to %s", dsn)
				return stripCredentials(err, cfg.Database.DSN)
			}
			defer conn.Close()

			logger.Debug("database reachable",
				zap.Stringer("dialect", conn.Dialect()),
			)
			printer.Success("Connected to %s database %s", conn.Dialect(), dsn)
			return nil
		},
	}
}

// redactDSN masks the password of URL style data source names
func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	return u.Redacted()
}

// stripCredentials removes the password of dsn from an error message
func stripCredentials(err error, dsn string) error {
	if err == nil {
		return nil
	}
	u, parseErr := url.Parse(dsn)
	if parseErr != nil || u.User == nil {
		return err
	}
	password, ok := u.User.Password()
	if !ok || password == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), password, "****"))
}
