package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"listing_governance/internal/domain"
	"listing_governance/internal/repository"
)

func TestDecisionRepository_SaveAndGetBySignalID(t *testing.T) {
	repo := NewDecisionRepository()
	decision := &domain.Decision{
		ID:          "d1",
		SignalID:    "s1",
		SignalType:  domain.SignalPriceDiscrepancy,
		Actions:     []domain.ActionOutcome{domain.ActionEscalate},
		EvaluatedAt: time.Now(),
	}

	err := repo.Save(context.Background(), decision)
	if err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	got, err := repo.GetBySignalID(context.Background(), "s1")

	if err != nil {
		t.Fatalf("unexpected error on GetBySignalID: %v", err)
	}
	if got.ID != "d1" || !got.HasAction(domain.ActionEscalate) {
		t.Errorf("expected decision %+v, got %+v", decision, got)
	}
}

func TestDecisionRepository_Duplicate(t *testing.T) {
	repo := NewDecisionRepository()
	_ = repo.Save(context.Background(), &domain.Decision{ID: "d1", SignalID: "s1"})

	err := repo.Save(context.Background(), &domain.Decision{ID: "d2", SignalID: "s1"})

	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestDecisionRepository_NotFound(t *testing.T) {
	repo := NewDecisionRepository()

	_, err := repo.GetBySignalID(context.Background(), "missing")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDecisionRepository_ListNewestFirst(t *testing.T) {
	repo := NewDecisionRepository()
	now := time.Now()
	_ = repo.Save(context.Background(), &domain.Decision{ID: "d1", SignalID: "s1", EvaluatedAt: now.Add(-2 * time.Minute)})
	_ = repo.Save(context.Background(), &domain.Decision{ID: "d2", SignalID: "s2", EvaluatedAt: now})
	_ = repo.Save(context.Background(), &domain.Decision{ID: "d3", SignalID: "s3", EvaluatedAt: now.Add(-time.Minute)})

	page, err := repo.List(context.Background(), 2, 0)

	if err != nil {
		t.Fatalf("unexpected error on List: %v", err)
	}
	if len(page) != 2 || page[0].ID != "d2" || page[1].ID != "d3" {
		t.Errorf("expected [d2 d3], got %+v", page)
	}
	rest, _ := repo.List(context.Background(), 2, 2)
	if len(rest) != 1 || rest[0].ID != "d1" {
		t.Errorf("expected [d1], got %+v", rest)
	}
}

func TestDecisionRepository_CountByAction(t *testing.T) {
	repo := NewDecisionRepository()
	_ = repo.Save(context.Background(), &domain.Decision{SignalID: "s1", Actions: []domain.ActionOutcome{domain.ActionEscalate}})
	_ = repo.Save(context.Background(), &domain.Decision{SignalID: "s2", Actions: []domain.ActionOutcome{domain.ActionEscalate, domain.ActionNotifyBroker}})
	_ = repo.Save(context.Background(), &domain.Decision{SignalID: "s3"})

	counts, err := repo.CountByAction(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[domain.ActionEscalate] != 2 || counts[domain.ActionNotifyBroker] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}
