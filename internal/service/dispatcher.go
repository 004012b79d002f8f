package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"listing_governance/internal/domain"
)

var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// ReviewQueue receives listings escalated to a human reviewer.
type ReviewQueue interface {
	Enqueue(ctx context.Context, d domain.Directive) error
}

type BrokerNotifier interface {
	NotifyBroker(ctx context.Context, d domain.Directive) error
}

type Closer interface {
	Close(ctx context.Context, d domain.Directive) error
}

// Publisher mirrors every directive to an external channel.
type Publisher interface {
	Publish(ctx context.Context, d domain.Directive) error
}

// FailureRecorder is told about directives that exhausted their attempts.
type FailureRecorder interface {
	RecordDispatchFailure(action string)
}

type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

// Dispatcher delivers engine output to the workflow systems that act on it.
// The engine only decides; every side effect happens here.
type Dispatcher struct {
	review    ReviewQueue
	brokers   BrokerNotifier
	closer    Closer
	publisher Publisher
	failures  FailureRecorder
	opts      DispatcherOptions
	queue     chan domain.Directive
	done      chan struct{}
	closeOnce sync.Once
	// mu orders enqueues before close(done) so workers drain everything
	// that Dispatch accepted.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewDispatcher(
	review ReviewQueue,
	brokers BrokerNotifier,
	closer Closer,
	publisher Publisher,
	opts DispatcherOptions,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	d := &Dispatcher{
		review:    review,
		brokers:   brokers,
		closer:    closer,
		publisher: publisher,
		opts:      opts,
		queue:     make(chan domain.Directive, opts.QueueSize),
		done:      make(chan struct{}),
		logger:    logger,
	}

	d.startWorkers()

	return d
}

func (d *Dispatcher) WithFailureRecorder(r FailureRecorder) *Dispatcher {
	d.failures = r
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, directive domain.Directive) error {
	if !directive.Action.Actionable() {
		return fmt.Errorf("cannot dispatch action %q", directive.Action)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- directive:
		d.logger.InfoContext(ctx, "Directive queued",
			slog.String("action", string(directive.Action)),
			slog.String("signal_id", directive.SignalID),
			slog.String("rule_id", directive.RuleID))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("Dispatch worker started", slog.Int("worker_id", id))

	for {
		select {
		case directive := <-d.queue:
			d.deliver(directive, id)
		case <-d.done:
			// drain whatever was queued before shutdown
			for {
				select {
				case directive := <-d.queue:
					d.deliver(directive, id)
				default:
					d.logger.Debug("Dispatch worker stopping", slog.Int("worker_id", id))
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(directive domain.Directive, workerID int) {
	startTime := time.Now()
	ctx := context.Background()

	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		err = d.route(ctx, directive)
		if err == nil {
			break
		}
		if attempt < d.opts.MaxAttempts {
			d.logger.Warn("Directive delivery failed, retrying",
				slog.String("action", string(directive.Action)),
				slog.String("signal_id", directive.SignalID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			time.Sleep(time.Duration(attempt) * d.opts.Backoff)
		}
	}

	duration := time.Since(startTime)

	if err != nil {
		if d.failures != nil {
			d.failures.RecordDispatchFailure(string(directive.Action))
		}
		d.logger.Error("Failed to deliver directive",
			slog.String("action", string(directive.Action)),
			slog.String("signal_id", directive.SignalID),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
		return
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, directive); err != nil {
			d.logger.Warn("Failed to publish directive",
				slog.String("action", string(directive.Action)),
				slog.String("signal_id", directive.SignalID),
				slog.String("error", err.Error()))
		}
	}

	d.logger.Info("Directive delivered",
		slog.String("action", string(directive.Action)),
		slog.String("signal_id", directive.SignalID),
		slog.Int("worker_id", workerID),
		slog.Duration("duration", duration))
}

func (d *Dispatcher) route(ctx context.Context, directive domain.Directive) error {
	switch directive.Action {
	case domain.ActionEscalate:
		return d.review.Enqueue(ctx, directive)
	case domain.ActionNotifyBroker:
		return d.brokers.NotifyBroker(ctx, directive)
	case domain.ActionAutoClose:
		return d.closer.Close(ctx, directive)
	default:
		return fmt.Errorf("unknown action: %s", directive.Action)
	}
}

// Shutdown stops accepting directives and waits for queued ones to be
// delivered.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
	})

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.logger.Info("Dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
