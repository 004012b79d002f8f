package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"listing_governance/internal/domain"
	"listing_governance/internal/repository"
)

func setupTestRepo(t *testing.T) *DecisionRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestDecisionRepository_SaveAndGetBySignalID(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	want := &domain.Decision{
		ID:          "d1",
		SignalID:    "s1",
		SignalType:  domain.SignalPriceDiscrepancy,
		ListingID:   "L1",
		Actions:     []domain.ActionOutcome{domain.ActionEscalate},
		Matches:     []domain.RuleMatch{{RuleID: "price-gap", Action: domain.ActionEscalate}},
		Failures:    []domain.RuleFailure{{RuleID: "broken", Error: "boom"}},
		EvaluatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:    42 * time.Microsecond,
	}

	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	got, err := repo.GetBySignalID(ctx, "s1")

	if err != nil {
		t.Fatalf("unexpected error on GetBySignalID: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestDecisionRepository_EmptyActionsRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &domain.Decision{ID: "d1", SignalID: "s3", SignalType: "UNKNOWN_TYPE"}); err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	got, err := repo.GetBySignalID(ctx, "s3")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Actions == nil || len(got.Actions) != 0 {
		t.Errorf("expected empty non-nil actions, got %#v", got.Actions)
	}
}

func TestDecisionRepository_Duplicate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	_ = repo.Save(ctx, &domain.Decision{ID: "d1", SignalID: "s1"})

	err := repo.Save(ctx, &domain.Decision{ID: "d2", SignalID: "s1"})

	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestDecisionRepository_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetBySignalID(context.Background(), "missing")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDecisionRepository_ListAndCount(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = repo.Save(ctx, &domain.Decision{ID: "d1", SignalID: "s1", EvaluatedAt: base, Actions: []domain.ActionOutcome{domain.ActionEscalate}})
	_ = repo.Save(ctx, &domain.Decision{ID: "d2", SignalID: "s2", EvaluatedAt: base.Add(time.Minute), Actions: []domain.ActionOutcome{domain.ActionNotifyBroker}})
	_ = repo.Save(ctx, &domain.Decision{ID: "d3", SignalID: "s3", EvaluatedAt: base.Add(2 * time.Minute), Actions: []domain.ActionOutcome{domain.ActionEscalate, domain.ActionAutoClose}})

	page, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error on List: %v", err)
	}
	var ids []string
	for _, d := range page {
		ids = append(ids, d.ID)
	}
	if diff := cmp.Diff([]string{"d3", "d2"}, ids); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	counts, err := repo.CountByAction(ctx)
	if err != nil {
		t.Fatalf("unexpected error on CountByAction: %v", err)
	}
	want := map[domain.ActionOutcome]int{
		domain.ActionEscalate:     2,
		domain.ActionNotifyBroker: 1,
		domain.ActionAutoClose:    1,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}
