package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations for the sqlite or postgres store.
func NewMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), opts)
		},
	}
}

func runMigrations(ctx context.Context, opts *options) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := stderrLogger(cfg)

	store, err := openSQLStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("migrations applied", "storage", cfg.Storage.Driver)
	return nil
}
