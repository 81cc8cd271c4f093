package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signer produces HMAC-SHA256 receipts for completed transfers.
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

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) error {
	expected := s.Sign(data)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Receipt signature mismatch", slog.Int("payload_bytes", len(data)))
		return ErrInvalidSignature
	}
	return nil
}

// SignReceipt binds a transfer's id, recipient, amount and timestamp.
func (s *Signer) SignReceipt(id, recipient string, amount float64, timestamp string) string {
	return s.Sign(receiptPayload(id, recipient, amount, timestamp))
}

func (s *Signer) VerifyReceipt(id, recipient string, amount float64, timestamp, signature string) error {
	return s.Verify(receiptPayload(id, recipient, amount, timestamp), signature)
}

func receiptPayload(id, recipient string, amount float64, timestamp string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%.2f|%s", id, recipient, amount, timestamp))
}
