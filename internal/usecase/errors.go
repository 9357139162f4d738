package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeRateLimited = "RATE_LIMITED"
	CodeLeaseLost   = "LEASE_LOST"
	CodeUnknownKind = "UNKNOWN_KIND"
	CodeNoFreeCode  = "TRACKING_CODE_EXHAUSTED"
	CodeNotStuck    = "NOT_RETRYABLE"
)

// DomainError is a business-rule rejection. The handler maps it to 422 unless
// a more specific status applies to its Code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError is an internal failure that is not the caller's fault.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error { return e.Err }

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is returned before any remote call is made.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, v.Error())
	}
	return strings.Join(parts, "; ")
}

// RateLimitError rejects a request whose identifier exhausted its window, or
// whose limit could not be checked at all.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
	Cause      error
}

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rate limit check for %s failed: %v", e.Action, e.Cause)
	}
	return fmt.Sprintf("too many %s requests, try again later", e.Action)
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

var ErrLeaseLost = &DomainError{Code: CodeLeaseLost, Message: "lease is no longer held by this worker"}
