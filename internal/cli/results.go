package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"watchparty-quiz/internal/app"
)

// NewResultsCmd prints a room's leaderboard straight from the database.
func NewResultsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "results <roomId>",
		Short: "Print a room's leaderboard as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResults(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
}

func printResults(ctx context.Context, opts *options, roomID string, out io.Writer) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	store, err := openSQLStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	service := app.NewService(store, nil, nil, app.Options{Logger: stderrLogger(cfg)})
	results, err := service.Results(ctx, roomID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
