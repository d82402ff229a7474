// Package commands implements nudgectl, the operator CLI for the nudge
// engine. Every command reads the same environment as the server.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/bootstrap"
	"github.com/benvon/smart-nudge/internal/config"
	"github.com/benvon/smart-nudge/internal/logger"
)

// NewRootCmd builds the nudgectl command tree
func NewRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "nudgectl",
		Short:         "Operator tool for the smart-nudge engine",
		Long:          "Inspect analytics, experiments and ledgers, preview messages, and manage CORS and rate limit settings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log engine activity to stderr")

	env := &environment{debug: &debug}
	root.AddCommand(
		newInsightsCmd(env),
		newABTestCmd(env),
		newLedgerCmd(env),
		newTemplatesCmd(),
		newPreviewCmd(env),
		newCorsCmd(env),
		newRatelimitCmd(env),
	)
	return root
}

// environment opens the configured backend on demand
type environment struct {
	debug *bool
}

func (e *environment) logger() *zap.Logger {
	if e.debug == nil || !*e.debug {
		return zap.NewNop()
	}
	return logger.NewCLILogger(true)
}

func (e *environment) open(ctx context.Context) (*config.Config, *bootstrap.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	backend, err := bootstrap.OpenBackend(ctx, cfg, e.logger())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, backend, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
