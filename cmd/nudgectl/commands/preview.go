package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-nudge/internal/bootstrap"
	"github.com/benvon/smart-nudge/internal/engine"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/storage"
	"github.com/benvon/smart-nudge/internal/validation"
)

func newPreviewCmd(env *environment) *cobra.Command {
	var (
		userID, name, typ string
		useAI             bool
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Generate a message for a user without recording it",
		Long: "Run message generation against the stored history of a user. Ledger and " +
			"analytics writes are kept in memory and discarded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if typ != "" {
				if err := validation.ValidateMessageType(typ); err != nil {
					return err
				}
			}
			cfg, backend, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			log := env.logger()
			text, err := bootstrap.NewTextGenerator(cfg, log, *env.debug)
			if err != nil || !useAI {
				text = nil
			}

			dryRun := *backend
			dryRun.Store = storage.NewOverlayStore(backend.Store)
			svc, err := bootstrap.NewEngine(cfg, &dryRun, text, nil, log)
			if err != nil {
				return err
			}

			msg := svc.GenerateOptimalMessage(cmd.Context(), &models.RawUser{ID: userID, Name: name}, nil, nil, engine.Options{
				PreferAI:    useAI,
				MessageType: models.MessageType(typ),
			})
			flushCtx, cancel := context.WithTimeout(cmd.Context(), bootstrap.FlushTimeout)
			defer cancel()
			_ = svc.Flush(flushCtx)
			return printJSON(cmd.OutOrStdout(), msg)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name used for personalization")
	cmd.Flags().StringVar(&typ, "type", "", "Force a message type")
	cmd.Flags().BoolVar(&useAI, "ai", false, "Prefer AI candidates when a provider is configured")
	return cmd
}
