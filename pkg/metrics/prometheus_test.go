package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollector_RecordEvaluation(t *testing.T) {
	m := NewMetricsCollector(nil)

	m.RecordEvaluation("PRICE_DISCREPANCY", time.Millisecond, []string{"ESCALATE"}, nil)
	m.RecordEvaluation("PRICE_DISCREPANCY", time.Millisecond, nil, []string{"price-gap"})

	if got := testutil.ToFloat64(m.signalsEvaluated.WithLabelValues("PRICE_DISCREPANCY")); got != 2 {
		t.Errorf("expected 2 evaluated signals, got %v", got)
	}
	if got := testutil.ToFloat64(m.actionsEmitted.WithLabelValues("ESCALATE")); got != 1 {
		t.Errorf("expected 1 escalate action, got %v", got)
	}
	if got := testutil.ToFloat64(m.ruleFailures.WithLabelValues("price-gap")); got != 1 {
		t.Errorf("expected 1 rule failure, got %v", got)
	}
}

func TestMetricsCollector_Gather(t *testing.T) {
	m := NewMetricsCollector(nil)
	m.SetCatalogSize(2)
	m.RecordRejected()

	expected := `
# HELP governance_catalog_rules Number of rules in the active catalog
# TYPE governance_catalog_rules gauge
governance_catalog_rules 2
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "governance_catalog_rules"); err != nil {
		t.Errorf("unexpected metrics output: %v", err)
	}
}
