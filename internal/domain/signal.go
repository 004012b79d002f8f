package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SignalType string

const (
	SignalPriceDiscrepancy    SignalType = "PRICE_DISCREPANCY"
	SignalUnregisteredListing SignalType = "UNREGISTERED_LISTING"
)

var ErrMalformedPayload = errors.New("malformed signal payload")

// Signal is an observation produced by listing ingestion. Payload is kept
// raw so that each rule decodes only the shape it understands.
type Signal struct {
	ID         string          `json:"id"`
	Type       SignalType      `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Source     string          `json:"source,omitempty"`
	ListingID  string          `json:"listing_id,omitempty"`
	DetectedAt time.Time       `json:"detected_at"`
}

type PriceDiscrepancyPayload struct {
	DiffPercentage Percentage `json:"diffPercentage"`
	ExternalPrice  float64    `json:"externalPrice,omitempty"`
	CanonicalPrice float64    `json:"canonicalPrice,omitempty"`
}

type UnregisteredListingPayload struct {
	SourceURL  string   `json:"sourceUrl,omitempty"`
	TrustScore *float64 `json:"trustScore,omitempty"`
}

// Percentage decodes from a JSON number or a numeric string.
type Percentage float64

func (p *Percentage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: percentage is null", ErrMalformedPayload)
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		raw = strings.TrimSpace(unquoted)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: percentage %q is not numeric", ErrMalformedPayload, raw)
	}
	*p = Percentage(v)
	return nil
}

func NewSignal(t SignalType, payload any) (Signal, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	return Signal{
		ID:         uuid.NewString(),
		Type:       t,
		Payload:    raw,
		DetectedAt: time.Now().UTC(),
	}, nil
}

func (s Signal) WithListing(listingID, source string) Signal {
	s.ListingID = listingID
	s.Source = source
	return s
}

func (s Signal) PriceDiscrepancy() (PriceDiscrepancyPayload, error) {
	var p struct {
		DiffPercentage *Percentage `json:"diffPercentage"`
		ExternalPrice  float64     `json:"externalPrice"`
		CanonicalPrice float64     `json:"canonicalPrice"`
	}
	if err := decodePayload(s.Payload, &p); err != nil {
		return PriceDiscrepancyPayload{}, err
	}
	if p.DiffPercentage == nil {
		return PriceDiscrepancyPayload{}, fmt.Errorf("%w: diffPercentage is missing", ErrMalformedPayload)
	}

	return PriceDiscrepancyPayload{
		DiffPercentage: *p.DiffPercentage,
		ExternalPrice:  p.ExternalPrice,
		CanonicalPrice: p.CanonicalPrice,
	}, nil
}

func (s Signal) UnregisteredListing() (UnregisteredListingPayload, error) {
	var p UnregisteredListingPayload
	if len(bytes.TrimSpace(s.Payload)) == 0 {
		return p, nil
	}
	if err := decodePayload(s.Payload, &p); err != nil {
		return UnregisteredListingPayload{}, err
	}
	return p, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
