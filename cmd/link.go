package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/identity"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/redaction"
)

var linkFlags struct {
	uid   string
	email string
	name  string
}

// linkCmd represents the link command
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link the signed-in identity to its backend account",
	Long: `Run one account link: fetch a fresh credential, then submit the link
request, retrying both within their time budgets.

Without --uid the identity is read from the claims of the credential itself.`,
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

		idCtx, cancel := context.WithTimeout(ctx, cfg.CredentialAttemptTimeout)
		who, err := resolveIdentity(idCtx, core.credentials)
		cancel()
		if err != nil {
			logger.ErrorContext(ctx, "failed to resolve identity",
				"error", redaction.RedactString(err.Error()),
			)
			os.Exit(1)
		}

		final, err := runLink(ctx, core.sync, who, cmd.OutOrStdout())
		if err != nil {
			logger.ErrorContext(ctx, "failed to start link",
				"error", err,
			)
			os.Exit(1)
		}
		if final.Phase != orchestrate.PhaseSucceeded {
			os.Exit(1)
		}
	},
}

// resolveIdentity uses the flags when --uid is set, otherwise the claims of
// a freshly issued credential.
func resolveIdentity(ctx context.Context, credentials orchestrate.CredentialSource) (orchestrate.Identity, error) {
	if linkFlags.uid != "" {
		return orchestrate.Identity{
			ID:          linkFlags.uid,
			Email:       linkFlags.email,
			DisplayName: linkFlags.name,
		}, nil
	}

	token, err := credentials.Credential(ctx, orchestrate.CredentialOptions{ForceRefresh: true})
	if err != nil {
		return orchestrate.Identity{}, fmt.Errorf("fetch credential: %w", err)
	}
	who, err := identity.ClaimsFromToken(token)
	if err != nil {
		return orchestrate.Identity{}, err
	}
	if linkFlags.email != "" {
		who.Email = linkFlags.email
	}
	if linkFlags.name != "" {
		who.DisplayName = linkFlags.name
	}
	return who, nil
}

// runLink starts a run for who, prints each transition to out and returns
// the final snapshot once the run exits.
func runLink(ctx context.Context, sync *orchestrate.SyncOrchestrator, who orchestrate.Identity, out io.Writer) (orchestrate.Snapshot, error) {
	unsubscribe := sync.Subscribe(func(s orchestrate.Snapshot) {
		fmt.Fprintf(out, "phase: %s\n", s.Phase)
	})
	defer unsubscribe()

	done, err := sync.Start(ctx, who)
	if err != nil {
		return orchestrate.Snapshot{}, err
	}
	<-done

	final := sync.Snapshot()
	switch final.Phase {
	case orchestrate.PhaseSucceeded:
		fmt.Fprintln(out, final.SuccessMessage)
	case orchestrate.PhaseFailed:
		fmt.Fprintln(out, final.ErrorMessage)
	default:
		fmt.Fprintf(out, "link %s\n", final.Phase)
	}
	return final, nil
}

func init() {
	linkCmd.Flags().StringVar(&linkFlags.uid, "uid", "", "Identity provider user id")
	linkCmd.Flags().StringVar(&linkFlags.email, "email", "", "Account email")
	linkCmd.Flags().StringVar(&linkFlags.name, "name", "", "Full name copied to the profile")

	rootCmd.AddCommand(linkCmd)
}
