package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-nudge/internal/models"
)

func newCorsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options. Running servers pick changes up within a minute.",
	}
	cmd.AddCommand(newCorsListCmd(env))
	cmd.AddCommand(newCorsSetCmd(env))
	return cmd
}

func newCorsListCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			c, err := backend.Cors.Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintln(out, "No CORS configuration stored. Use 'cors set' to add one.")
				return nil
			}
			fmt.Fprintln(out, "CORS configuration:")
			fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(c.AllowedOrigins, ", "))
			fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
			fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
			fmt.Fprintf(out, "  Updated: %s\n", c.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newCorsSetCmd(env *environment) *cobra.Command {
	var c models.CorsConfig
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Replace the allowed origins. Running servers pick the change up on their next reload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.Normalize(); err != nil {
				return err
			}
			_, backend, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			if err := backend.Cors.Set(cmd.Context(), &c); err != nil {
				return fmt.Errorf("set cors config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CORS configuration updated: %s\n", strings.Join(c.AllowedOrigins, ", "))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&c.AllowedOrigins, "origins", nil, "Allowed origins, comma-separated or repeated (required)")
	cmd.Flags().BoolVar(&c.AllowCredentials, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&c.MaxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	_ = cmd.MarkFlagRequired("origins")
	return cmd
}
