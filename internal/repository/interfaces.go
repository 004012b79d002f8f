package repository

import (
	"context"
	"errors"

	"listing_governance/internal/domain"
)

type DecisionRepository interface {
	Save(ctx context.Context, decision *domain.Decision) error
	GetBySignalID(ctx context.Context, signalID string) (*domain.Decision, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Decision, error)
	CountByAction(ctx context.Context) (map[domain.ActionOutcome]int, error)
	Close() error
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
