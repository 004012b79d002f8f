package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Signer authenticates signal submissions from ingestion pipelines.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Enabled() bool {
	return s != nil && len(s.secretKey) > 0
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	signature := mac.Sum(nil)
	return hex.EncodeToString(signature)
}

func (s *Signer) Verify(data []byte, signature string) (bool, error) {
	expectedSignature := s.Sign(data)

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.Int("payload_bytes", len(data)))
		return false, fmt.Errorf("invalid signature")
	}

	return true, nil
}

// SignSignal signs the fields that identify a submission: id, type and the
// exact payload bytes.
func (s *Signer) SignSignal(signalID, signalType string, payload []byte) string {
	return s.Sign(signalMessage(signalID, signalType, payload))
}

func (s *Signer) VerifySignal(signalID, signalType string, payload []byte, signature string) (bool, error) {
	return s.Verify(signalMessage(signalID, signalType, payload), signature)
}

func signalMessage(signalID, signalType string, payload []byte) []byte {
	prefix := fmt.Sprintf("%s:%s:", signalID, signalType)
	return append([]byte(prefix), payload...)
}
