package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"listing_governance/internal/domain"
)

var (
	ErrMissingID        = errors.New("signal id is required")
	ErrInvalidType      = errors.New("invalid signal type")
	ErrPayloadTooLarge  = errors.New("signal payload too large")
	ErrFutureSignal     = errors.New("signal detection time cannot be in the future")
	ErrInvalidSignalDoc = errors.New("signal payload is not a JSON document")
)

const DefaultMaxPayloadBytes = 64 << 10

// SignalValidator rejects structurally broken submissions at the service
// boundary. Payload content is left to the rules: a payload a rule cannot
// parse is still a valid submission. Duplicate IDs are caught by the
// decision repository, not here.
type SignalValidator struct {
	typeRegex       *regexp.Regexp
	maxPayloadBytes int
}

func NewSignalValidator(maxPayloadBytes int) *SignalValidator {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &SignalValidator{
		typeRegex:       regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`),
		maxPayloadBytes: maxPayloadBytes,
	}
}

func (v *SignalValidator) ValidateSignal(sig domain.Signal) error {
	var errs []error

	if sig.ID == "" {
		errs = append(errs, ErrMissingID)
	}

	if !v.typeRegex.MatchString(string(sig.Type)) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidType, sig.Type))
	}

	if len(sig.Payload) > v.maxPayloadBytes {
		errs = append(errs, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(sig.Payload), v.maxPayloadBytes))
	}

	if trimmed := bytes.TrimSpace(sig.Payload); len(trimmed) > 0 && !json.Valid(trimmed) {
		errs = append(errs, ErrInvalidSignalDoc)
	}

	if sig.DetectedAt.After(time.Now().Add(5 * time.Minute)) {
		errs = append(errs, ErrFutureSignal)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %w", errors.Join(errs...))
	}

	return nil
}
