package validator

import (
	"errors"
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"secureflow/internal/domain"
)

// MaxRemarksLength bounds free-text remarks after sanitizing.
const MaxRemarksLength = 256

var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors is returned when more than one field is invalid.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, len(e))
	for i := range e {
		parts[i] = e[i].Error()
	}
	return strings.Join(parts, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type TransactionValidator struct {
	policy *bluemonday.Policy
}

func NewTransactionValidator() *TransactionValidator {
	return &TransactionValidator{
		policy: bluemonday.StrictPolicy(),
	}
}

// ValidateTransaction checks the preconditions the risk engine relies on.
func (v *TransactionValidator) ValidateTransaction(tx domain.Transaction) error {
	var errs ValidationErrors

	if err := ValidateRecipient(tx.RecipientUPI); err != nil {
		errs = append(errs, *err)
	}
	if err := ValidateAmount(tx.Amount); err != nil {
		errs = append(errs, *err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func ValidateRecipient(upi string) *ValidationError {
	upi = strings.TrimSpace(upi)
	if upi == "" {
		return NewValidationError("recipientUPI", "is required")
	}
	if !strings.Contains(upi, domain.UPIDelimiter) {
		return NewValidationError("recipientUPI", "must contain %q", domain.UPIDelimiter)
	}
	return nil
}

func ValidateAmount(amount float64) *ValidationError {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return NewValidationError("amount", "must be a finite number")
	}
	if amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	return nil
}

// SanitizeRemarks strips markup and control bytes and bounds the length.
func (v *TransactionValidator) SanitizeRemarks(remarks string) string {
	// StrictPolicy escapes entities in the text it keeps.
	s := html.UnescapeString(v.policy.Sanitize(remarks))
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxRemarksLength {
		s = string(r[:MaxRemarksLength])
	}
	return s
}

// Normalize returns a copy of tx ready for scoring. Remarks are left raw so
// keyword rules see exactly what the sender typed; sanitize before storing.
func (v *TransactionValidator) Normalize(tx domain.Transaction) domain.Transaction {
	tx.RecipientUPI = strings.TrimSpace(tx.RecipientUPI)
	return tx
}
