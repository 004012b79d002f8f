package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"listing_governance/internal/governance"
)

type RuleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
}

func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rules",
		Short:         "List the rule catalog in evaluation order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			ordered := governance.DefaultCatalog().Ordered()
			rules := make([]RuleInfo, 0, len(ordered))
			var text strings.Builder
			for _, r := range ordered {
				rules = append(rules, RuleInfo{ID: r.ID, Name: r.Name, Description: r.Description, Priority: r.Priority})
				fmt.Fprintf(&text, "%d\t%s\t%s\n", r.Priority, r.ID, r.Name)
			}

			return formatter.Success(rules, text.String())
		},
	}
}
