package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"listing_governance/internal/domain"
	"listing_governance/internal/repository"
)

type DecisionRepository struct {
	mu        sync.RWMutex
	decisions map[string]*domain.Decision
	order     []string
}

func NewDecisionRepository() *DecisionRepository {
	return &DecisionRepository{
		decisions: make(map[string]*domain.Decision),
	}
}

func (r *DecisionRepository) Save(ctx context.Context, decision *domain.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decisions[decision.SignalID]; exists {
		return fmt.Errorf("%w: decision for signal %s", repository.ErrDuplicate, decision.SignalID)
	}

	r.decisions[decision.SignalID] = decision
	r.order = append(r.order, decision.SignalID)

	return nil
}

func (r *DecisionRepository) GetBySignalID(ctx context.Context, signalID string) (*domain.Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decision, exists := r.decisions[signalID]
	if !exists {
		return nil, fmt.Errorf("%w: decision for signal %s", repository.ErrNotFound, signalID)
	}
	return decision, nil
}

// List returns decisions newest first.
func (r *DecisionRepository) List(ctx context.Context, limit, offset int) ([]*domain.Decision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Decision, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		result = append(result, r.decisions[r.order[i]])
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EvaluatedAt.After(result[j].EvaluatedAt)
	})

	if offset >= len(result) {
		return []*domain.Decision{}, nil
	}
	end := len(result)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return result[offset:end], nil
}

func (r *DecisionRepository) CountByAction(ctx context.Context) (map[domain.ActionOutcome]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.ActionOutcome]int)
	for _, d := range r.decisions {
		for _, a := range d.Actions {
			counts[a]++
		}
	}
	return counts, nil
}

func (r *DecisionRepository) Close() error {
	return nil
}
