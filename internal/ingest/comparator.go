package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"listing_governance/internal/domain"
)

var ErrInvalidObservation = errors.New("invalid observation")

// Observation is one listing as seen on an external source, joined with the
// canonical record when the listing is registered here.
type Observation struct {
	ListingID      string   `json:"listing_id"`
	Source         string   `json:"source"`
	SourceURL      string   `json:"source_url,omitempty"`
	Registered     bool     `json:"registered"`
	ExternalPrice  float64  `json:"external_price"`
	CanonicalPrice float64  `json:"canonical_price"`
	TrustScore     *float64 `json:"trust_score,omitempty"`
}

type Comparator struct {
	detectors  []Detector
	noiseFloor float64
}

type Detector struct {
	Name   string
	Detect func(Observation) (domain.Signal, bool, error)
}

// NewComparator builds a comparator. Price gaps at or below noiseFloor
// percent do not produce a signal.
func NewComparator(noiseFloor float64) *Comparator {
	c := &Comparator{noiseFloor: math.Max(noiseFloor, 0)}
	c.detectors = []Detector{
		{Name: "unregistered_listing", Detect: c.detectUnregistered},
		{Name: "price_discrepancy", Detect: c.detectPriceDiscrepancy},
	}
	return c
}

func (c *Comparator) Compare(obs Observation) ([]domain.Signal, error) {
	if strings.TrimSpace(obs.Source) == "" {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidObservation)
	}
	if obs.ExternalPrice < 0 || obs.CanonicalPrice < 0 {
		return nil, fmt.Errorf("%w: prices cannot be negative", ErrInvalidObservation)
	}

	var signals []domain.Signal
	for _, d := range c.detectors {
		sig, found, err := d.Detect(obs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		if found {
			signals = append(signals, sig.WithListing(obs.ListingID, obs.Source))
		}
	}
	return signals, nil
}

func (c *Comparator) detectUnregistered(obs Observation) (domain.Signal, bool, error) {
	if obs.Registered {
		return domain.Signal{}, false, nil
	}
	sig, err := domain.NewSignal(domain.SignalUnregisteredListing, domain.UnregisteredListingPayload{
		SourceURL:  obs.SourceURL,
		TrustScore: obs.TrustScore,
	})
	return sig, err == nil, err
}

func (c *Comparator) detectPriceDiscrepancy(obs Observation) (domain.Signal, bool, error) {
	if !obs.Registered {
		return domain.Signal{}, false, nil
	}
	if strings.TrimSpace(obs.ListingID) == "" {
		return domain.Signal{}, false, fmt.Errorf("%w: registered listing requires listing_id", ErrInvalidObservation)
	}
	if obs.CanonicalPrice <= 0 {
		return domain.Signal{}, false, fmt.Errorf("%w: canonical price must be positive", ErrInvalidObservation)
	}

	diff := DiffPercentage(obs.ExternalPrice, obs.CanonicalPrice)
	if diff <= c.noiseFloor {
		return domain.Signal{}, false, nil
	}

	sig, err := domain.NewSignal(domain.SignalPriceDiscrepancy, domain.PriceDiscrepancyPayload{
		DiffPercentage: domain.Percentage(diff),
		ExternalPrice:  obs.ExternalPrice,
		CanonicalPrice: obs.CanonicalPrice,
	})
	return sig, err == nil, err
}

// DiffPercentage is the absolute difference relative to canonical, in
// percent. It is not rounded: the price-gap threshold is strict, so a gap
// of 20.004% must stay above 20.
func DiffPercentage(external, canonical float64) float64 {
	if canonical == 0 {
		return 0
	}
	return math.Abs(external-canonical) * 100 / canonical
}
