package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/cache"
	"github.com/conduit-lang/tablemap/internal/cli/config"
	"github.com/conduit-lang/tablemap/internal/cli/ui"
)

// errClearCacheFilter is returned when a filter is combined with a cache
// that only supports clearing everything
var errClearCacheFilter = errors.New("When clearing the query or metadata cache do not specify any --id, --regex, --prefix or --suffix.")

// confirm asks a yes/no question. Replaced in tests.
var confirm = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

type clearCacheOptions struct {
	query    bool
	result   bool
	metadata bool
	id       string
	regex    string
	prefix   string
	suffix   string
	yes      bool
}

func (o *clearCacheOptions) filtered() bool {
	return o.id != "" || o.regex != "" || o.prefix != "" || o.suffix != ""
}

func (o *clearCacheOptions) selected() bool {
	return o.query || o.result || o.metadata
}

func (o *clearCacheOptions) validate() error {
	if (o.query || o.metadata) && o.filtered() {
		return errClearCacheFilter
	}
	return nil
}

// types returns the caches to clear. No selection means every cache.
func (o *clearCacheOptions) types() []string {
	if !o.selected() {
		return []string{"query", "result", "metadata"}
	}
	var types []string
	if o.query {
		types = append(types, "query")
	}
	if o.result {
		types = append(types, "result")
	}
	if o.metadata {
		types = append(types, "metadata")
	}
	return types
}

// NewClearCacheCommand creates the clear-cache command
func NewClearCacheCommand(global *globalOptions) *cobra.Command {
	opts := &clearCacheOptions{}

	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Clear cache from configured query, result and metadata drivers",
		Long: `Clear entries from the configured query, result and metadata caches.

Without --query, --result or --metadata every configured cache is cleared.
Entries of the result cache can be selected by id, regular expression,
prefix or suffix. Clearing every cache without a selection asks for
confirmation unless --yes is given.`,
		Example: `  # Clear every cache
  tablemap clear-cache --yes

  # Clear the metadata cache
  tablemap clear-cache --metadata

  # Clear result cache entries by id, * matches any run of characters
  tablemap clear-cache --result --id "user:*"

  # Clear result cache entries with a prefix
  tablemap clear-cache --result --prefix article:`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}

			cfg, logger, printer, err := global.load(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runClearCache(cmd.Context(), opts, cfg, logger, printer)
		},
	}

	cmd.Flags().BoolVar(&opts.query, "query", false, "Clear the query cache")
	cmd.Flags().BoolVar(&opts.metadata, "metadata", false, "Clear the metadata cache")
	cmd.Flags().BoolVar(&opts.result, "result", false, "Clear the result cache")
	cmd.Flags().StringVar(&opts.id, "id", "", "The id of the cache entry to delete (accepts * wildcards)")
	cmd.Flags().StringVar(&opts.regex, "regex", "", "Delete cache entries that match the given regular expression")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "Delete cache entries that have the given prefix")
	cmd.Flags().StringVar(&opts.suffix, "suffix", "", "Delete cache entries that have the given suffix")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runClearCache(ctx context.Context, opts *clearCacheOptions, cfg *config.Config, logger *zap.Logger, printer *ui.Printer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	types := opts.types()

	if !opts.selected() && !opts.filtered() && !opts.yes {
		ok, err := confirm(fmt.Sprintf("Clear all %s cache entries?", strings.Join(types, ", ")))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			printer.Info("Cache clearing cancelled")
			return nil
		}
	}

	configs := map[string]cache.Config{
		"query":    cfg.Cache.Query,
		"result":   cfg.Cache.Result,
		"metadata": cfg.Cache.Metadata,
	}
	for _, typ := range types {
		if err := clearCache(ctx, typ, configs[typ], opts, logger, printer); err != nil {
			return err
		}
	}
	return nil
}

func clearCache(ctx context.Context, typ string, cacheConfig cache.Config, opts *clearCacheOptions, logger *zap.Logger, printer *ui.Printer) error {
	driver, err := cache.New(cacheConfig)
	if err != nil {
		return fmt.Errorf("failed to open %s cache: %w", typ, err)
	}
	if driver == nil {
		printer.Error("No driver has been configured for the %s cache.", typ)
		return nil
	}
	defer driver.Close()

	deleteWith := func(message string, del func() ([]string, error)) error {
		printer.Info("%s", message)
		deleted, err := del()
		if err != nil {
			return fmt.Errorf("failed to clear %s cache: %w", typ, err)
		}
		logger.Debug("cache entries deleted",
			zap.String("cache", typ),
			zap.Int("count", len(deleted)),
		)
		printDeleted(printer, typ, deleted)
		return nil
	}

	if opts.id != "" {
		msg := fmt.Sprintf("Clearing %s cache entries that match the id %q", typ, opts.id)
		if err := deleteWith(msg, func() ([]string, error) { return driver.Delete(ctx, opts.id) }); err != nil {
			return err
		}
	}
	if opts.regex != "" {
		msg := fmt.Sprintf("Clearing %s cache entries that match the regular expression %q", typ, opts.regex)
		if err := deleteWith(msg, func() ([]string, error) { return driver.DeleteByRegex(ctx, opts.regex) }); err != nil {
			return err
		}
	}
	if opts.prefix != "" {
		msg := fmt.Sprintf("Clearing %s cache entries that have the prefix %q", typ, opts.prefix)
		if err := deleteWith(msg, func() ([]string, error) { return driver.DeleteByPrefix(ctx, opts.prefix) }); err != nil {
			return err
		}
	}
	if opts.suffix != "" {
		msg := fmt.Sprintf("Clearing %s cache entries that have the suffix %q", typ, opts.suffix)
		if err := deleteWith(msg, func() ([]string, error) { return driver.DeleteBySuffix(ctx, opts.suffix) }); err != nil {
			return err
		}
	}
	if !opts.filtered() {
		msg := fmt.Sprintf("Clearing all %s cache entries", typ)
		return deleteWith(msg, func() ([]string, error) { return driver.DeleteAll(ctx) })
	}
	return nil
}

func printDeleted(printer *ui.Printer, typ string, ids []string) {
	if len(ids) == 0 {
		printer.Error("No %s cache entries found", typ)
	} else {
		printer.List(ids)
	}
	printer.Write("\n", ui.StyleNone)
}
