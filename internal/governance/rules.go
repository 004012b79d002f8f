package governance

import (
	"listing_governance/internal/domain"
)

const (
	PriceGapRuleID                   = "price-gap"
	UnregisteredHighConfidenceRuleID = "unregistered-high-confidence"

	// PriceGapThreshold is exclusive: a gap of exactly 20% does not escalate.
	PriceGapThreshold = 20.0
)

func PriceGapRule() Rule {
	return Rule{
		ID:          PriceGapRuleID,
		Name:        "Price gap",
		Description: "Escalate when an external price differs from the canonical price by more than 20%",
		Priority:    10,
		Condition: func(sig domain.Signal, _ EvalContext) (bool, error) {
			if sig.Type != domain.SignalPriceDiscrepancy {
				return false, nil
			}
			p, err := sig.PriceDiscrepancy()
			if err != nil {
				return false, err
			}
			return float64(p.DiffPercentage) > PriceGapThreshold, nil
		},
		Action: func(domain.Signal) (domain.ActionOutcome, error) {
			return domain.ActionEscalate, nil
		},
	}
}

func UnregisteredHighConfidenceRule() Rule {
	return Rule{
		ID:          UnregisteredHighConfidenceRuleID,
		Name:        "Unregistered listing, high confidence",
		Description: "Notify the responsible broker about a listing found on an external source but not registered here",
		Priority:    5,
		// TODO: gate on the source trust score once sources expose it to the engine.
		Condition: func(sig domain.Signal, _ EvalContext) (bool, error) {
			return sig.Type == domain.SignalUnregisteredListing, nil
		},
		Action: func(domain.Signal) (domain.ActionOutcome, error) {
			return domain.ActionNotifyBroker, nil
		},
	}
}

func DefaultCatalog() *Catalog {
	return MustCatalog(
		PriceGapRule(),
		UnregisteredHighConfidenceRule(),
	)
}
