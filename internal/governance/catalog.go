package governance

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"listing_governance/internal/domain"
)

// EvalContext carries optional evaluation context. The zero value is valid.
type EvalContext struct {
	ReceivedAt time.Time
	Attributes map[string]string
}

// ConditionFunc must return false for signal types it does not handle,
// checking the type before touching the payload.
type ConditionFunc func(sig domain.Signal, evalCtx EvalContext) (bool, error)

type ActionFunc func(sig domain.Signal) (domain.ActionOutcome, error)

type Rule struct {
	ID          string
	Name        string
	Description string
	Priority    int
	Condition   ConditionFunc
	Action      ActionFunc
}

// Catalog is an immutable set of rules. Evaluation order is computed once
// at construction: priority descending, ties in registration order.
type Catalog struct {
	rules   []Rule
	ordered []Rule
	index   map[string]int
}

func NewCatalog(rules ...Rule) (*Catalog, error) {
	c := &Catalog{
		rules: make([]Rule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}

	for _, rule := range rules {
		if strings.TrimSpace(rule.ID) == "" {
			return nil, newInvalidRuleError("", fmt.Sprintf("rule %q has no id", rule.Name))
		}
		if rule.Condition == nil {
			return nil, newInvalidRuleError(rule.ID, "rule has no condition")
		}
		if rule.Action == nil {
			return nil, newInvalidRuleError(rule.ID, "rule has no action")
		}
		if _, exists := c.index[rule.ID]; exists {
			return nil, newDuplicateRuleError(rule.ID)
		}

		c.index[rule.ID] = len(c.rules)
		c.rules = append(c.rules, rule)
	}

	c.ordered = slices.Clone(c.rules)
	slices.SortStableFunc(c.ordered, func(a, b Rule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	return c, nil
}

// MustCatalog is NewCatalog for static catalogs built at startup.
func MustCatalog(rules ...Rule) *Catalog {
	c, err := NewCatalog(rules...)
	if err != nil {
		panic(err)
	}
	return c
}

// Rules returns the rules in registration order.
func (c *Catalog) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Ordered returns the rules in evaluation order.
func (c *Catalog) Ordered() []Rule {
	return slices.Clone(c.ordered)
}

func (c *Catalog) Get(id string) (Rule, bool) {
	i, ok := c.index[id]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

func (c *Catalog) Len() int {
	return len(c.rules)
}
