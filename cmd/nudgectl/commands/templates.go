package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/templates"
	"github.com/benvon/smart-nudge/internal/validation"
)

func newTemplatesCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the built-in message templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if typ != "" {
				if err := validation.ValidateMessageType(typ); err != nil {
					return err
				}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tCATEGORY\tWEIGHT\tVARIANTS\tCONDITIONS\tTAGS")
			for _, t := range templates.NewDefault().Templates() {
				if typ != "" && t.Type != models.MessageType(typ) {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%d\t%s\n",
					t.ID, t.Type, t.Category, t.Weight, len(t.Variants), len(t.Conditions), strings.Join(t.Tags, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Only list templates of this message type")
	return cmd
}
