package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/polling"
)

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:       "poll ranking|parsing <ref>",
	Short:     "Poll a ranking or resume parsing job until it finishes",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"ranking", "parsing"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := mustLogger()

		cfg, err := config.LoadConfig()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load config",
				"error", err,
			)
			os.Exit(1)
		}

		core, err := newComponents(cfg, afero.NewOsFs(), logger)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build components",
				"error", err,
			)
			os.Exit(1)
		}

		kind, ref := args[0], args[1]

		var outcome polling.State
		switch kind {
		case "ranking":
			outcome, err = awaitAndPrint(ctx, core.ranking, ref, cmd.OutOrStdout())
		case "parsing":
			outcome, err = awaitAndPrint(ctx, core.parsing, ref, cmd.OutOrStdout())
		default:
			err = fmt.Errorf("unknown task kind '%s': must be ranking or parsing", kind)
		}
		if err != nil {
			logger.ErrorContext(ctx, "polling stopped",
				"kind", kind,
				"ref", ref,
				"error", err,
			)
			os.Exit(1)
		}
		if outcome != polling.StateCompleted {
			os.Exit(1)
		}
	},
}

// awaitAndPrint polls ref to a terminal outcome and prints it to out. A
// completed result is printed as JSON.
func awaitAndPrint[T any](ctx context.Context, tracker *polling.Tracker[T], ref string, out io.Writer) (polling.State, error) {
	res, err := tracker.Await(ctx, ref)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(out, "%s after %d attempts\n", res.Outcome, res.Attempts)
	if res.Outcome != polling.StateCompleted {
		if res.Message != "" {
			fmt.Fprintln(out, res.Message)
		}
		return res.Outcome, nil
	}

	data, err := json.MarshalIndent(res.Value, "", "  ")
	if err != nil {
		return res.Outcome, fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return res.Outcome, nil
}

// configCmd prints the environment variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "List the environment variables careerlink reads",
	Run: func(cmd *cobra.Command, args []string) {
		usage, err := config.Usage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to describe config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), usage)
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(configCmd)
}
