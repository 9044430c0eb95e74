package core

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Stable machine-readable error codes surfaced to the formatting layer.
const (
	CodeChunkingError        = "CHUNKING_ERROR"
	CodeRateLimited          = "RATE_LIMITED"
	CodeTimeout              = "TIMEOUT"
	CodeInvalidResponse      = "INVALID_RESPONSE"
	CodeProviderError        = "PROVIDER_ERROR"
	CodeMergeError           = "MERGE_ERROR"
	CodeSummarizationSkipped = "SUMMARIZATION_SKIPPED"
	CodeProcessingError      = "PROCESSING_ERROR"
	CodeJobNotFound          = "JOB_NOT_FOUND"
	CodeCancelled            = "CANCELLED"
)

// Summarization failure reasons.
const (
	ReasonRateLimited     = "rate_limited"
	ReasonTimeout         = "timeout"
	ReasonInvalidResponse = "invalid_response"
	ReasonProviderError   = "provider_error"
)

// ErrorInfo is the wire shape for any error: a stable code plus a
// human-readable message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// ChunkingError reports invalid chunking configuration. It is fatal and
// rejected before any work starts.
type ChunkingError struct {
	Message string
}

func (e *ChunkingError) Error() string { return e.Message }

// Info returns the wire representation.
func (e *ChunkingError) Info() *ErrorInfo {
	return &ErrorInfo{Code: CodeChunkingError, Message: e.Message}
}

// SummarizationError is a classified model-provider failure. Transient
// failures (rate limits, timeouts, 5xx) are retried; the rest propagate
// immediately.
type SummarizationError struct {
	Reason    string
	Message   string
	Transient bool
	Err       error
}

func (e *SummarizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("summarization %s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("summarization %s: %s", e.Reason, e.Message)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Info returns the wire representation with the reason mapped to its code.
func (e *SummarizationError) Info() *ErrorInfo {
	code := CodeProviderError
	switch e.Reason {
	case ReasonRateLimited:
		code = CodeRateLimited
	case ReasonTimeout:
		code = CodeTimeout
	case ReasonInvalidResponse:
		code = CodeInvalidResponse
	}
	return &ErrorInfo{Code: code, Message: e.Message}
}

// MergeError reports a failed merge, most often an exhausted synthesis call.
// It is surfaced per-language, like a summarization failure.
type MergeError struct {
	Message string
	Err     error
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("merge: %s: %v", e.Message, e.Err)
	}
	return "merge: " + e.Message
}

func (e *MergeError) Unwrap() error { return e.Err }

// Info returns the wire representation.
func (e *MergeError) Info() *ErrorInfo {
	return &ErrorInfo{Code: CodeMergeError, Message: e.Message}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var se *SummarizationError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}

// InfoFromError maps any error to its wire representation, falling back to a
// generic processing error.
func InfoFromError(err error) *ErrorInfo {
	var se *SummarizationError
	if errors.As(err, &se) {
		return se.Info()
	}
	var ce *ChunkingError
	if errors.As(err, &ce) {
		return ce.Info()
	}
	var me *MergeError
	if errors.As(err, &me) {
		return me.Info()
	}
	if errors.Is(err, ErrJobNotFound) {
		return &ErrorInfo{Code: CodeJobNotFound, Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) {
		return &ErrorInfo{Code: CodeCancelled, Message: err.Error()}
	}
	return &ErrorInfo{Code: CodeProcessingError, Message: err.Error()}
}

// ClassifyProviderError converts a raw model-provider error into a
// SummarizationError. Rate limits, timeouts and 5xx responses are transient;
// other API errors (auth failures, malformed requests) are not. Unrecognized
// errors are treated as transient provider failures, matching the network
// hiccups they usually are.
func ClassifyProviderError(err error) *SummarizationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &SummarizationError{Reason: ReasonTimeout, Message: "model call timed out", Transient: true, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &SummarizationError{Reason: ReasonRateLimited, Message: "provider rate limit", Transient: true, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &SummarizationError{Reason: ReasonProviderError, Message: fmt.Sprintf("provider returned %d", apiErr.HTTPStatusCode), Transient: true, Err: err}
		default:
			return &SummarizationError{Reason: ReasonProviderError, Message: fmt.Sprintf("provider rejected request (%d)", apiErr.HTTPStatusCode), Transient: false, Err: err}
		}
	}
	return &SummarizationError{Reason: ReasonProviderError, Message: "provider call failed", Transient: true, Err: err}
}
