package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"listing_governance/internal/domain"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordDispatchFailure(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[action]++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_RoutesByAction(t *testing.T) {
	review, brokers, closer, published := &RecordingSink{}, &RecordingSink{}, &RecordingSink{}, &RecordingSink{}
	d := NewDispatcher(review, brokers, closer, published, DispatcherOptions{Workers: 2, QueueSize: 10, MaxAttempts: 1}, quietLogger())
	ctx := context.Background()

	for _, a := range []domain.ActionOutcome{domain.ActionEscalate, domain.ActionNotifyBroker, domain.ActionAutoClose} {
		if err := d.Dispatch(ctx, domain.Directive{SignalID: "s1", Action: a}); err != nil {
			t.Fatalf("unexpected dispatch error: %v", err)
		}
	}
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	if got := review.Received(); len(got) != 1 || got[0].Action != domain.ActionEscalate {
		t.Errorf("expected one escalation, got %+v", got)
	}
	if got := brokers.Received(); len(got) != 1 || got[0].Action != domain.ActionNotifyBroker {
		t.Errorf("expected one broker notification, got %+v", got)
	}
	if got := closer.Received(); len(got) != 1 || got[0].Action != domain.ActionAutoClose {
		t.Errorf("expected one auto close, got %+v", got)
	}
	if got := published.Received(); len(got) != 3 {
		t.Errorf("expected all directives published, got %d", len(got))
	}
}

func TestDispatcher_RejectsNone(t *testing.T) {
	sink := &RecordingSink{}
	d := NewDispatcher(sink, sink, sink, nil, DispatcherOptions{}, quietLogger())
	defer d.Shutdown(context.Background())

	err := d.Dispatch(context.Background(), domain.Directive{SignalID: "s1", Action: domain.ActionNone})

	if err == nil {
		t.Fatal("expected NONE to be rejected")
	}
}

func TestDispatcher_RecordsFailureAfterRetries(t *testing.T) {
	failing := &RecordingSink{Err: errors.New("review service unavailable")}
	ok := &RecordingSink{}
	recorder := &countingRecorder{}
	d := NewDispatcher(failing, ok, ok, nil, DispatcherOptions{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, quietLogger()).
		WithFailureRecorder(recorder)

	_ = d.Dispatch(context.Background(), domain.Directive{SignalID: "s1", Action: domain.ActionEscalate})
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.counts[string(domain.ActionEscalate)] != 1 {
		t.Errorf("expected one recorded failure, got %v", recorder.counts)
	}
}

func TestDispatcher_DispatchAfterShutdown(t *testing.T) {
	sink := &RecordingSink{}
	d := NewDispatcher(sink, sink, sink, nil, DispatcherOptions{}, quietLogger())
	_ = d.Shutdown(context.Background())

	err := d.Dispatch(context.Background(), domain.Directive{SignalID: "s1", Action: domain.ActionAutoClose})

	if !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("expected repeated shutdown to succeed, got %v", err)
	}
}

func TestDispatcher_ConcurrentShutdownDeliversAccepted(t *testing.T) {
	for round := 0; round < 20; round++ {
		sink := &RecordingSink{}
		d := NewDispatcher(sink, sink, sink, nil, DispatcherOptions{Workers: 2, QueueSize: 4, MaxAttempts: 1}, quietLogger())

		var accepted sync.WaitGroup
		var mu sync.Mutex
		count := 0
		for i := 0; i < 16; i++ {
			accepted.Add(1)
			go func() {
				defer accepted.Done()
				if err := d.Dispatch(context.Background(), domain.Directive{SignalID: "s", Action: domain.ActionEscalate}); err == nil {
					mu.Lock()
					count++
					mu.Unlock()
				}
			}()
		}

		if err := d.Shutdown(context.Background()); err != nil {
			t.Fatalf("unexpected shutdown error: %v", err)
		}
		accepted.Wait()

		if got := len(sink.Received()); got != count {
			t.Fatalf("round %d: %d directives accepted but %d delivered", round, count, got)
		}
	}
}
