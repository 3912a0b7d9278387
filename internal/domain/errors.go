package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrLimitReached  = fmt.Errorf("limit reached")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the bridge and its adapters.
var (
	ErrMalformedMessage   = fmt.Errorf("malformed provider message")
	ErrUnsupportedMessage = fmt.Errorf("unsupported message type")
	ErrInvalidEnvelope    = fmt.Errorf("provider message failed schema validation")
	ErrUserRejected       = fmt.Errorf("user rejected request")
	ErrPromptUnavailable  = fmt.Errorf("confirmation prompt unavailable")
	ErrRateLimit          = fmt.Errorf("rate limit exceeded")
	ErrPageClosed         = fmt.Errorf("page closed")
	ErrInjectFailed       = fmt.Errorf("script injection failed")
	ErrBrowserNotConn     = fmt.Errorf("browser not connected")
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrAuditWrite         = fmt.Errorf("audit log write failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Bridge.Decode")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeLimitReached       ErrorCode = "LIMIT_REACHED"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeProviderError      ErrorCode = "PROVIDER_ERROR"
	CodeMalformedMessage   ErrorCode = "MALFORMED_MESSAGE"
	CodeUnsupportedMessage ErrorCode = "UNSUPPORTED_MESSAGE"
	CodeInvalidEnvelope    ErrorCode = "INVALID_ENVELOPE"
	CodeUserRejected       ErrorCode = "USER_REJECTED"
	CodePromptUnavailable  ErrorCode = "PROMPT_UNAVAILABLE"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodePageClosed         ErrorCode = "PAGE_CLOSED"
	CodeInjectFailed       ErrorCode = "INJECT_FAILED"
	CodeBrowserNotConn     ErrorCode = "BROWSER_NOT_CONNECTED"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeAuditWrite         ErrorCode = "AUDIT_WRITE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrTimeout:       CodeTimeout,
	ErrLimitReached:  CodeLimitReached,
	ErrInvalidInput:  CodeInvalidInput,
	ErrProviderError: CodeProviderError,

	ErrMalformedMessage:   CodeMalformedMessage,
	ErrUnsupportedMessage: CodeUnsupportedMessage,
	ErrInvalidEnvelope:    CodeInvalidEnvelope,
	ErrUserRejected:       CodeUserRejected,
	ErrPromptUnavailable:  CodePromptUnavailable,
	ErrRateLimit:          CodeRateLimit,
	ErrPageClosed:         CodePageClosed,
	ErrInjectFailed:       CodeInjectFailed,
	ErrBrowserNotConn:     CodeBrowserNotConn,
	ErrConfigLoad:         CodeConfigLoad,
	ErrAuditWrite:         CodeAuditWrite,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
