package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSignal_PriceDiscrepancy_Number(t *testing.T) {
	s := Signal{ID: "s1", Type: SignalPriceDiscrepancy, Payload: json.RawMessage(`{"diffPercentage":35}`)}

	p, err := s.PriceDiscrepancy()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DiffPercentage != 35 {
		t.Errorf("expected 35, got %v", p.DiffPercentage)
	}
}

func TestSignal_PriceDiscrepancy_NumericString(t *testing.T) {
	s := Signal{ID: "s1", Type: SignalPriceDiscrepancy, Payload: json.RawMessage(`{"diffPercentage":" 20.5 "}`)}

	p, err := s.PriceDiscrepancy()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DiffPercentage != 20.5 {
		t.Errorf("expected 20.5, got %v", p.DiffPercentage)
	}
}

func TestSignal_PriceDiscrepancy_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `not-json`,
		"json string":   `"not-json"`,
		"missing field": `{}`,
		"null field":    `{"diffPercentage":null}`,
		"non numeric":   `{"diffPercentage":"abc"}`,
		"empty":         ``,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s := Signal{ID: "s3", Type: SignalPriceDiscrepancy, Payload: json.RawMessage(raw)}

			_, err := s.PriceDiscrepancy()

			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestSignal_UnregisteredListing_EmptyPayload(t *testing.T) {
	s := Signal{ID: "s2", Type: SignalUnregisteredListing, Payload: json.RawMessage(`{}`)}

	p, err := s.UnregisteredListing()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TrustScore != nil {
		t.Errorf("expected no trust score, got %v", *p.TrustScore)
	}
}

func TestNewSignal_EncodesPayload(t *testing.T) {
	s, err := NewSignal(SignalPriceDiscrepancy, PriceDiscrepancyPayload{DiffPercentage: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.ID == "" {
		t.Error("expected generated id")
	}
	p, err := s.PriceDiscrepancy()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DiffPercentage != 42 {
		t.Errorf("expected 42, got %v", p.DiffPercentage)
	}
}

func TestActionOutcome_Actionable(t *testing.T) {
	if ActionNone.Actionable() {
		t.Error("NONE must not be actionable")
	}
	if ActionOutcome("DELETE").Actionable() {
		t.Error("unknown outcome must not be actionable")
	}
	if !ActionEscalate.Actionable() {
		t.Error("ESCALATE must be actionable")
	}
}
