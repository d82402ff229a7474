package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-nudge/internal/ledger"
)

func newLedgerCmd(env *environment) *cobra.Command {
	var userID string
	var clearHistory bool
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show or clear a user's interaction ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, backend, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			l := ledger.New(backend.Store, cfg.LedgerCapacity, env.logger())
			if clearHistory {
				if err := l.Clear(cmd.Context(), userID); err != nil {
					return fmt.Errorf("clear ledger: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ledger cleared for %s.\n", userID)
				return nil
			}
			history, err := l.Load(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), history)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "Delete the user's stored interactions")
	return cmd
}
