package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"listing_governance/internal/domain"
	"listing_governance/internal/governance"
)

type EvaluateOptions struct {
	File    string
	Workers int
}

// EvaluationResult is one signal's outcome as printed by evaluate.
type EvaluationResult struct {
	SignalID   string                 `json:"signal_id"`
	SignalType domain.SignalType      `json:"signal_type"`
	Actions    []domain.ActionOutcome `json:"actions"`
	Failures   []domain.RuleFailure   `json:"failures,omitempty"`
}

func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate signals from a file against the default catalog",
		Long: `Evaluate reads signals from a YAML or JSON file and prints the actions the
rule catalog produces for each one. Nothing is stored or dispatched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "signal file (YAML or JSON)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent evaluations")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEvaluate(ctx context.Context, rootOpts *RootOptions, opts *EvaluateOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	signals, err := LoadSignals(opts.File)
	if err != nil {
		_ = formatter.Error("LOAD_FAILED", err.Error())
		return WrapExitError(ExitCommandError, "load signals", err)
	}
	formatter.VerboseLog("Loaded %d signal(s) from %s", len(signals), opts.File)

	engine, err := governance.NewEngine(governance.DefaultCatalog(), commandLogger(formatter))
	if err != nil {
		return WrapExitError(ExitCommandError, "create engine", err)
	}

	evals, err := engine.EvaluateBatch(ctx, signals, opts.Workers)
	if err != nil {
		return WrapExitError(ExitFailure, "evaluate signals", err)
	}

	results := make([]EvaluationResult, 0, len(evals))
	var text strings.Builder
	for _, e := range evals {
		results = append(results, EvaluationResult{
			SignalID:   e.SignalID,
			SignalType: e.SignalType,
			Actions:    e.Actions,
			Failures:   e.Failures,
		})
		fmt.Fprintf(&text, "%s\t%s\t%s\n", e.SignalID, e.SignalType, formatActions(e.Actions))
		for _, f := range e.Failures {
			fmt.Fprintf(&text, "  rule %s failed: %s\n", f.RuleID, f.Error)
		}
	}

	return formatter.Success(results, text.String())
}

func formatActions(actions []domain.ActionOutcome) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, string(a))
	}
	return strings.Join(parts, ",")
}

// commandLogger sends engine logs to stderr in verbose mode and drops them
// otherwise.
func commandLogger(f *OutputFormatter) *slog.Logger {
	if !f.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(f.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
