// Package cli implements the filemgr-admin command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/filemgr/internal/app"
	"github.com/noah-isme/filemgr/pkg/config"
	"github.com/noah-isme/filemgr/pkg/logger"
)

// Loader builds the application for one command invocation.
type Loader func(ctx context.Context) (*app.App, error)

// DefaultLoader reads configuration from the environment and .env.
func DefaultLoader(verbose bool) Loader {
	return func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logr := zap.NewNop()
		if verbose {
			if logr, err = logger.New(cfg); err != nil {
				return nil, fmt.Errorf("init logger: %w", err)
			}
		}
		return app.New(ctx, cfg, logr)
	}
}

// NewRootCommand assembles every admin subcommand. A nil load uses
// DefaultLoader.
func NewRootCommand(load Loader) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "filemgr-admin",
		Short:         "Administer the file manager catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log catalog activity to stderr")

	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
		l := load
		if l == nil {
			l = DefaultLoader(verbose)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := l(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a)
	}

	root.AddCommand(
		migrateCommand(withApp),
		typesCommand(withApp),
		elementsCommand(withApp),
		ingestCommand(withApp),
		queryCommand(withApp),
	)
	return root
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error

func migrateCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables and the tables of every registered product type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *app.App) error {
				types, err := a.Types.List(ctx)
				if err != nil {
					return err
				}
				for i := range types {
					if err := a.Catalog.EnsureTypeTables(ctx, &types[i]); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated core schema and %d product type(s)\n", len(types))
				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
