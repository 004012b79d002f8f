package governance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"listing_governance/internal/domain"
)

// Engine evaluates signals against a catalog snapshot. It holds no
// per-signal state, so one instance is shared by all callers.
type Engine struct {
	catalog *atomic.Pointer[Catalog]
	logger  *slog.Logger
}

type Evaluation struct {
	SignalID    string
	SignalType  domain.SignalType
	Actions     []domain.ActionOutcome
	Matches     []domain.RuleMatch
	Failures    []domain.RuleFailure
	EvaluatedAt time.Time
	Duration    time.Duration
}

func NewEngine(catalog *Catalog, logger *slog.Logger) (*Engine, error) {
	if catalog == nil {
		return nil, &CatalogError{Code: ErrCodeMissingCatalog, Message: "engine requires a rule catalog"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		catalog: atomic.NewPointer(catalog),
		logger:  logger,
	}, nil
}

func (e *Engine) Catalog() *Catalog {
	return e.catalog.Load()
}

// Replace swaps the catalog for subsequent evaluations. Evaluations already
// running finish against the snapshot they loaded.
func (e *Engine) Replace(catalog *Catalog) error {
	if catalog == nil {
		return &CatalogError{Code: ErrCodeMissingCatalog, Message: "cannot replace catalog with nil"}
	}
	previous := e.catalog.Swap(catalog)
	e.logger.Info("Rule catalog replaced",
		slog.Int("previous_rules", previous.Len()),
		slog.Int("rules", catalog.Len()))
	return nil
}

// Evaluate returns the non-NONE actions produced for sig, in evaluation
// order. It never fails: misbehaving rules are skipped and logged.
func (e *Engine) Evaluate(ctx context.Context, sig domain.Signal) []domain.ActionOutcome {
	return e.EvaluateDetailed(ctx, sig, EvalContext{}).Actions
}

func (e *Engine) EvaluateDetailed(ctx context.Context, sig domain.Signal, evalCtx EvalContext) Evaluation {
	start := time.Now()
	rules := e.catalog.Load().ordered

	eval := Evaluation{
		SignalID:    sig.ID,
		SignalType:  sig.Type,
		Actions:     make([]domain.ActionOutcome, 0, len(rules)),
		EvaluatedAt: start.UTC(),
	}

	for _, rule := range rules {
		action, matched, err := e.applyRule(rule, sig, evalCtx)
		if err != nil {
			eval.Failures = append(eval.Failures, domain.RuleFailure{RuleID: rule.ID, Error: err.Error()})
			e.logger.ErrorContext(ctx, "Failed to evaluate rule",
				slog.String("rule_id", rule.ID),
				slog.String("signal_id", sig.ID),
				slog.String("error", err.Error()))
			continue
		}

		if !matched || action == domain.ActionNone {
			continue
		}

		eval.Actions = append(eval.Actions, action)
		eval.Matches = append(eval.Matches, domain.RuleMatch{RuleID: rule.ID, Action: action})
		e.logger.InfoContext(ctx, "Rule triggered",
			slog.String("rule_id", rule.ID),
			slog.String("action", string(action)),
			slog.String("signal_id", sig.ID))
	}

	eval.Duration = time.Since(start)
	return eval
}

// EvaluateBatch evaluates signals concurrently with at most workers in
// flight and returns evaluations in input order.
func (e *Engine) EvaluateBatch(ctx context.Context, signals []domain.Signal, workers int) ([]Evaluation, error) {
	results := make([]Evaluation, len(signals))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, sig := range signals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.EvaluateDetailed(gctx, sig, EvalContext{ReceivedAt: time.Now().UTC()})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch evaluation interrupted: %w", err)
	}
	return results, nil
}

// applyRule runs condition and action inside one fault boundary. Any error
// or panic discards the rule's contribution entirely.
func (e *Engine) applyRule(rule Rule, sig domain.Signal, evalCtx EvalContext) (action domain.ActionOutcome, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			action, matched = domain.ActionNone, false
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()

	// each rule sees its own copy of the payload
	sig.Payload = bytes.Clone(sig.Payload)

	ok, err := rule.Condition(sig, evalCtx)
	if err != nil {
		return domain.ActionNone, false, fmt.Errorf("condition failed: %w", err)
	}
	if !ok {
		return domain.ActionNone, false, nil
	}

	action, err = rule.Action(sig)
	if err != nil {
		return domain.ActionNone, false, fmt.Errorf("action failed: %w", err)
	}
	if !action.Valid() {
		return domain.ActionNone, false, fmt.Errorf("action returned unknown outcome %q", action)
	}

	return action, true, nil
}
