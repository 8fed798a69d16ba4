// Package errors provides standardized error handling for the news pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUpstreamProvider     ErrorCode = "UPSTREAM_PROVIDER_ERROR"
	ErrCodeProviderTimeout      ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeProviderAuth         ErrorCode = "PROVIDER_AUTH_FAILED"
	ErrCodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeMalformedResponse    ErrorCode = "MALFORMED_PROVIDER_RESPONSE"
	ErrCodeAggregateUnavailable ErrorCode = "AGGREGATE_UNAVAILABLE"

	ErrCodeCacheStoreFailed   ErrorCode = "CACHE_STORE_FAILED"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"

	ErrCodeLanguageModelTimeout ErrorCode = "LANGUAGE_MODEL_TIMEOUT"
	ErrCodeLanguageModelFailed  ErrorCode = "LANGUAGE_MODEL_FAILED"

	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var stdErr *StandardError
	if errors.As(target, &stdErr) {
		return e.Code == stdErr.Code
	}
	return false
}

// CodeOf extracts the error code from any error, or empty when the error is
// not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether the error is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUpstreamProviderError marks a single provider failure. It is swallowed
// at the aggregation level and only contributes to the degraded flag.
func NewUpstreamProviderError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamProvider,
		Message:   fmt.Sprintf("Provider '%s' request failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a provider timeout error.
func NewProviderTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   fmt.Sprintf("Provider '%s' timed out", provider),
		Retryable: true,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderAuthError creates a non-retryable provider auth error.
func NewProviderAuthError(provider string, statusCode int) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderAuth,
		Message:   fmt.Sprintf("Provider '%s' rejected credentials", provider),
		Details:   fmt.Sprintf("status: %d", statusCode),
		Retryable: false,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError creates a provider rate-limit error. Retry is
// deferred to the next cache-expiry-triggered fetch, never within the same
// request.
func NewRateLimitExceededError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimitExceeded,
		Message:   fmt.Sprintf("Provider '%s' rate limit exceeded", provider),
		Retryable: false,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError creates a provider payload decode error.
func NewMalformedResponseError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   fmt.Sprintf("Provider '%s' returned a malformed payload", provider),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"provider": provider},
		Timestamp: time.Now().UTC(),
	}
}

// NewAggregateUnavailableError creates the retryable failure surfaced when
// every configured provider failed for a query.
func NewAggregateUnavailableError(attempted int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAggregateUnavailable,
		Message:   "All news providers failed",
		Details:   fmt.Sprintf("providers attempted: %d", attempted),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheStoreFailedError creates a retryable cache backend error.
func NewCacheStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheStoreFailed,
		Message:   "Cache store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError creates a retryable session store I/O error.
// Unlike provider failures it propagates to the caller.
func NewSessionStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLanguageModelTimeoutError creates a language-model timeout error. The
// composer recovers locally with a templated message.
func NewLanguageModelTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLanguageModelTimeout,
		Message:   "Language model call timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLanguageModelFailedError creates a language-model service error.
func NewLanguageModelFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLanguageModelFailed,
		Message:   "Language model service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
