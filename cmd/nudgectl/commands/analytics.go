package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-nudge/internal/analytics"
)

func newInsightsCmd(env *environment) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print the insights report",
		Long:  "Print the weekly insights report as JSON. --user adds that user's engagement.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, backend, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			a := analytics.New(backend.Store, env.logger(), analytics.WithDailyCap(cfg.AnalyticsDailyCap))
			report, err := a.Insights(cmd.Context(), strings.TrimSpace(userID))
			if err != nil {
				return fmt.Errorf("build insights: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID to include engagement for")
	return cmd
}

func newABTestCmd(env *environment) *cobra.Command {
	var testID string
	var variants []string
	cmd := &cobra.Command{
		Use:   "abtest",
		Short: "Evaluate an A/B test",
		Long:  "Compare experiment variants. The first variant is the control.",
		RunE: func(cmd *cobra.Command, args []string) error {
			testID = strings.TrimSpace(testID)
			if testID == "" {
				return fmt.Errorf("--test is required")
			}
			if len(variants) < 2 {
				return fmt.Errorf("--variants needs at least two variant IDs")
			}
			cfg, backend, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			a := analytics.New(backend.Store, env.logger(), analytics.WithDailyCap(cfg.AnalyticsDailyCap))
			results, err := a.RunABTest(cmd.Context(), testID, variants)
			if err != nil {
				return fmt.Errorf("run ab test: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIANT\tSAMPLES\tCONVERSION\tENGAGEMENT\tCONFIDENCE\tSIGNIFICANT")
			for _, r := range results {
				name := r.VariantID
				if r.IsControl {
					name += " (control)"
				}
				fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%v\n",
					name, r.SampleSize, r.ConversionRate, r.EngagementRate, r.Confidence, r.IsSignificant)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&testID, "test", "", "Experiment test ID (required)")
	cmd.Flags().StringSliceVar(&variants, "variants", nil, "Comma-separated variant IDs, control first (required)")
	return cmd
}
