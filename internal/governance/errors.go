package governance

import (
	"errors"
	"fmt"
)

// CatalogErrorCode categorizes catalog configuration errors.
type CatalogErrorCode string

const (
	// ErrCodeDuplicateRule indicates two rules share an ID.
	ErrCodeDuplicateRule CatalogErrorCode = "DUPLICATE_RULE"

	// ErrCodeInvalidRule indicates a rule is missing an ID, condition or action.
	ErrCodeInvalidRule CatalogErrorCode = "INVALID_RULE"

	// ErrCodeMissingCatalog indicates an engine was built without a catalog.
	ErrCodeMissingCatalog CatalogErrorCode = "MISSING_CATALOG"
)

// CatalogError is raised while building a catalog or an engine. It is a
// deployment defect and is never produced during evaluation.
type CatalogError struct {
	Code    CatalogErrorCode
	RuleID  string
	Message string
}

func (e *CatalogError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.RuleID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDuplicateRule reports whether err is a duplicate rule ID error.
func IsDuplicateRule(err error) bool {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeDuplicateRule
	}
	return false
}

// IsInvalidRule reports whether err is an incomplete rule definition error.
func IsInvalidRule(err error) bool {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInvalidRule
	}
	return false
}

func newDuplicateRuleError(ruleID string) *CatalogError {
	return &CatalogError{
		Code:    ErrCodeDuplicateRule,
		RuleID:  ruleID,
		Message: "rule id is already registered",
	}
}

func newInvalidRuleError(ruleID, message string) *CatalogError {
	return &CatalogError{
		Code:    ErrCodeInvalidRule,
		RuleID:  ruleID,
		Message: message,
	}
}
