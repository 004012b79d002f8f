package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"listing_governance/internal/domain"
)

var ErrNoSignals = errors.New("signal file contains no signals")

// signalDocument is the on-disk shape of a signal file. JSON files parse
// through the same decoder.
type signalDocument struct {
	Signals []signalEntry `yaml:"signals"`
}

type signalEntry struct {
	ID        string            `yaml:"id"`
	Type      domain.SignalType `yaml:"type"`
	Source    string            `yaml:"source"`
	ListingID string            `yaml:"listing_id"`
	Payload   yaml.Node         `yaml:"payload"`
}

func LoadSignals(path string) ([]domain.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal file: %w", err)
	}
	return ParseSignals(data)
}

func ParseSignals(data []byte) ([]domain.Signal, error) {
	var doc signalDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse signal file: %w", err)
	}
	if len(doc.Signals) == 0 {
		return nil, ErrNoSignals
	}

	now := time.Now().UTC()
	signals := make([]domain.Signal, 0, len(doc.Signals))
	for i, e := range doc.Signals {
		payload, err := payloadJSON(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		signals = append(signals, domain.Signal{
			ID:         id,
			Type:       e.Type,
			Payload:    payload,
			Source:     e.Source,
			ListingID:  e.ListingID,
			DetectedAt: now,
		})
	}
	return signals, nil
}

// payloadJSON re-encodes a YAML payload node as JSON. A string payload
// stays a JSON string, matching what the API receives for the same document.
func payloadJSON(node yaml.Node) (json.RawMessage, error) {
	if node.Kind == 0 {
		return nil, nil
	}

	var v any
	if err := node.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return raw, nil
}
