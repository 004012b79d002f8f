package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"listing_governance/internal/domain"
	"listing_governance/internal/governance"
	"listing_governance/internal/repository"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, directive domain.Directive) error
}

type SignalValidator interface {
	ValidateSignal(sig domain.Signal) error
}

// Recorder receives evaluation outcomes for metrics.
type Recorder interface {
	RecordEvaluation(signalType string, duration time.Duration, actions []string, failedRules []string)
	RecordRejected()
}

// GovernanceProcessor runs one signal through validation, the rule engine,
// the audit trail and the dispatcher.
type GovernanceProcessor struct {
	engine       *governance.Engine
	decisionRepo repository.DecisionRepository
	dispatcher   Dispatcher
	validator    SignalValidator
	recorder     Recorder
	mu           sync.RWMutex
	metrics      map[string]int
	logger       *slog.Logger
}

func NewGovernanceProcessor(
	engine *governance.Engine,
	decisionRepo repository.DecisionRepository,
	dispatcher Dispatcher,
	validator SignalValidator,
	logger *slog.Logger,
) *GovernanceProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	return &GovernanceProcessor{
		engine:       engine,
		decisionRepo: decisionRepo,
		dispatcher:   dispatcher,
		validator:    validator,
		metrics:      make(map[string]int),
		logger:       logger,
	}
}

func (p *GovernanceProcessor) WithRecorder(r Recorder) *GovernanceProcessor {
	p.recorder = r
	return p
}

func (p *GovernanceProcessor) Engine() *governance.Engine {
	return p.engine
}

func (p *GovernanceProcessor) ProcessSignal(ctx context.Context, sig domain.Signal) (*domain.Decision, error) {
	if sig.DetectedAt.IsZero() {
		sig.DetectedAt = time.Now().UTC()
	}

	if p.validator != nil {
		if err := p.validator.ValidateSignal(sig); err != nil {
			p.recordMetric("signals_rejected", 1)
			if p.recorder != nil {
				p.recorder.RecordRejected()
			}
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	eval := p.engine.EvaluateDetailed(ctx, sig, governance.EvalContext{
		ReceivedAt: time.Now().UTC(),
		Attributes: map[string]string{"source": sig.Source},
	})

	decision := &domain.Decision{
		ID:          uuid.NewString(),
		SignalID:    sig.ID,
		SignalType:  sig.Type,
		ListingID:   sig.ListingID,
		Actions:     eval.Actions,
		Matches:     eval.Matches,
		Failures:    eval.Failures,
		EvaluatedAt: eval.EvaluatedAt,
		Duration:    eval.Duration,
	}

	if err := p.decisionRepo.Save(ctx, decision); err != nil {
		return nil, fmt.Errorf("failed to save decision: %w", err)
	}

	p.record(eval)

	p.dispatch(ctx, sig, eval)

	p.logger.InfoContext(ctx, "Signal processed",
		slog.String("signal_id", sig.ID),
		slog.String("signal_type", string(sig.Type)),
		slog.Int("actions", len(decision.Actions)),
		slog.Int("rule_failures", len(decision.Failures)))

	return decision, nil
}

func (p *GovernanceProcessor) GetDecision(ctx context.Context, signalID string) (*domain.Decision, error) {
	return p.decisionRepo.GetBySignalID(ctx, signalID)
}

func (p *GovernanceProcessor) ListDecisions(ctx context.Context, limit, offset int) ([]*domain.Decision, error) {
	return p.decisionRepo.List(ctx, limit, offset)
}

// Stats summarizes recorded decisions and the counters of this process.
type Stats struct {
	ActionCounts map[domain.ActionOutcome]int `json:"action_counts"`
	Counters     map[string]int               `json:"counters"`
}

func (p *GovernanceProcessor) Stats(ctx context.Context) (Stats, error) {
	counts, err := p.decisionRepo.CountByAction(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count decisions: %w", err)
	}
	return Stats{ActionCounts: counts, Counters: p.GetMetrics()}, nil
}

func (p *GovernanceProcessor) GetMetrics() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]int, len(p.metrics))
	for k, v := range p.metrics {
		out[k] = v
	}
	return out
}

// dispatch hands each match to the dispatcher. Delivery problems do not
// change the decision, which is already recorded.
func (p *GovernanceProcessor) dispatch(ctx context.Context, sig domain.Signal, eval governance.Evaluation) {
	if p.dispatcher == nil {
		return
	}

	for _, m := range eval.Matches {
		directive := domain.Directive{
			SignalID:  sig.ID,
			ListingID: sig.ListingID,
			Source:    sig.Source,
			Action:    m.Action,
			RuleID:    m.RuleID,
			IssuedAt:  time.Now().UTC(),
		}
		if err := p.dispatcher.Dispatch(ctx, directive); err != nil {
			p.recordMetric("dispatch_errors", 1)
			p.logger.ErrorContext(ctx, "Failed to dispatch directive",
				slog.String("signal_id", sig.ID),
				slog.String("rule_id", m.RuleID),
				slog.String("action", string(m.Action)),
				slog.String("error", err.Error()))
		}
	}
}

func (p *GovernanceProcessor) record(eval governance.Evaluation) {
	p.recordMetric("signals_processed", 1)
	p.recordMetric("actions_emitted", len(eval.Actions))
	p.recordMetric("rule_failures", len(eval.Failures))

	if p.recorder == nil {
		return
	}

	actions := make([]string, 0, len(eval.Actions))
	for _, a := range eval.Actions {
		actions = append(actions, string(a))
	}
	failed := make([]string, 0, len(eval.Failures))
	for _, f := range eval.Failures {
		failed = append(failed, f.RuleID)
	}
	p.recorder.RecordEvaluation(string(eval.SignalType), eval.Duration, actions, failed)
}

func (p *GovernanceProcessor) recordMetric(key string, value int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics[key] += value
}
