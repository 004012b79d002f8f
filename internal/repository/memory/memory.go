package memory

import (
	"listing_governance/internal/repository"
)

var (
	_ repository.DecisionRepository = (*DecisionRepository)(nil)
)
