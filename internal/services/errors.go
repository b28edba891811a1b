package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrProfileNotFound indicates the user has no profile, or the profile id is unknown
	ErrProfileNotFound = errors.New("profile not found")

	// ErrMessageNotFound indicates the message id is unknown
	ErrMessageNotFound = errors.New("message not found")

	// ErrCampaignNotFound indicates the campaign id is unknown
	ErrCampaignNotFound = errors.New("campaign not found")
)

// ValidationError carries field-level messages for a rejected write.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProviderError reports a failed hand-off to the SMS provider. The ledger
// entry has already been marked FAILED with Code when this is returned.
type ProviderError struct {
	MessageID string
	Code      string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("sms provider send failed (%s): %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
