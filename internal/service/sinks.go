package service

import (
	"context"
	"log/slog"
	"sync"

	"listing_governance/internal/domain"
)

// RecordingSink keeps every directive it receives. It satisfies all sink
// interfaces.
type RecordingSink struct {
	mu       sync.Mutex
	received []domain.Directive
	Err      error
}

func (s *RecordingSink) Enqueue(ctx context.Context, d domain.Directive) error {
	return s.record(d)
}

func (s *RecordingSink) NotifyBroker(ctx context.Context, d domain.Directive) error {
	return s.record(d)
}

func (s *RecordingSink) Close(ctx context.Context, d domain.Directive) error {
	return s.record(d)
}

func (s *RecordingSink) Publish(ctx context.Context, d domain.Directive) error {
	return s.record(d)
}

func (s *RecordingSink) Received() []domain.Directive {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Directive, len(s.received))
	copy(out, s.received)
	return out
}

func (s *RecordingSink) record(d domain.Directive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.received = append(s.received, d)
	return nil
}

// LoggingSink writes each directive to the log. It is the default sink when
// no workflow system is connected.
type LoggingSink struct {
	Logger *slog.Logger
}

func (s LoggingSink) Enqueue(ctx context.Context, d domain.Directive) error {
	return s.log(ctx, "Listing escalated for review", d)
}

func (s LoggingSink) NotifyBroker(ctx context.Context, d domain.Directive) error {
	return s.log(ctx, "Broker notified", d)
}

func (s LoggingSink) Close(ctx context.Context, d domain.Directive) error {
	return s.log(ctx, "Listing closed", d)
}

func (s LoggingSink) log(ctx context.Context, msg string, d domain.Directive) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, msg,
		slog.String("signal_id", d.SignalID),
		slog.String("listing_id", d.ListingID),
		slog.String("rule_id", d.RuleID))
	return nil
}
