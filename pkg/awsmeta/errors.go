package awsmeta

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrorKind classifies a normalized client error.
type ErrorKind string

// Error kinds.
const (
	// ErrorKindValidation marks malformed parameters or an unknown operation
	// name. The request is never sent.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindSigning marks a credential or signing failure. The request is
	// never sent.
	ErrorKindSigning ErrorKind = "signing"

	// ErrorKindTransport marks a network or timeout failure. The request may
	// or may not have reached the remote side.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindService marks a structured failure body returned by the
	// remote side.
	ErrorKindService ErrorKind = "service"

	// ErrorKindPaginationConfig marks an attempt to paginate an operation
	// whose model lacks pagination metadata. A programming-contract
	// violation, reported before any request is issued.
	ErrorKindPaginationConfig ErrorKind = "pagination_config"

	// ErrorKindWait marks a waiter that reached a failure acceptor or
	// exhausted its attempts.
	ErrorKindWait ErrorKind = "wait"
)

// Error is the single normalized error surfaced by the execution pipeline
// and the engines built on it. Every failure that escapes the pipeline is
// wrapped into exactly one Error; already-normalized errors pass through
// untouched.
type Error struct {
	Kind        ErrorKind
	Operation   string
	Message     string
	ServiceCode string
	ServiceType string
	StatusCode  int
	RequestID   string
	Cause       error

	// Command is a diagnostics-only back-reference to the command whose
	// execution produced this error. It may be nil.
	Command *Command
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))

	if e.Operation != "" {
		b.WriteString(" error in ")
		b.WriteString(e.Operation)
	} else {
		b.WriteString(" error")
	}

	if e.ServiceCode != "" {
		b.WriteString(": ")
		b.WriteString(e.ServiceCode)
	}

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if e.Message == "" && e.ServiceCode == "" && e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NormalizeError wraps err into an *Error of the given kind unless it is one
// already; re-entrant execution must not double-wrap.
func NormalizeError(operation string, kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}

	normalized := &Error{}
	if errors.As(err, &normalized) {
		return normalized
	}

	return &Error{
		Kind:      kind,
		Operation: operation,
		Message:   err.Error(),
		Cause:     err,
	}
}

// IsValidation checks whether the error is a local validation failure.
func IsValidation(err error) bool {
	return hasKind(err, ErrorKindValidation)
}

// IsSigning checks whether the error is a signing failure.
func IsSigning(err error) bool {
	return hasKind(err, ErrorKindSigning)
}

// IsTransport checks whether the error is a transport-level failure.
func IsTransport(err error) bool {
	return hasKind(err, ErrorKindTransport)
}

// IsService checks whether the error carries a service-reported failure.
func IsService(err error) bool {
	return hasKind(err, ErrorKindService)
}

// IsPaginationConfig checks whether the error marks missing pagination
// metadata.
func IsPaginationConfig(err error) bool {
	return hasKind(err, ErrorKindPaginationConfig)
}

// IsWaitFailure checks whether the error came from a waiter that failed or
// exhausted its attempts.
func IsWaitFailure(err error) bool {
	return hasKind(err, ErrorKindWait)
}

// IsThrottling checks whether the error is a service throttling response.
func IsThrottling(err error) bool {
	clientErr := &Error{}
	if !errors.As(err, &clientErr) {
		return false
	}

	switch clientErr.ServiceCode {
	case "Throttling", "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded":
		return true
	}

	return false
}

// ServiceCode returns the service-reported error code, or "" when the error
// carries none.
func ServiceCode(err error) string {
	clientErr := &Error{}
	if errors.As(err, &clientErr) {
		return clientErr.ServiceCode
	}

	return ""
}

func hasKind(err error, kind ErrorKind) bool {
	clientErr := &Error{}
	if errors.As(err, &clientErr) {
		return clientErr.Kind == kind
	}

	return false
}

// ErrorDetails is the best-effort decoding of a structured failure body.
type ErrorDetails struct {
	Code    string
	Type    string
	Message string
}

// ErrorParser extracts service-reported diagnostics from a raw failure body.
// Returning ok=false means the body carried no structured error; that is not
// itself an error.
type ErrorParser func(body []byte) (ErrorDetails, bool)

// ParseErrorBody is the default ErrorParser. It understands the common JSON
// failure shapes: {"code": ..., "message": ...}, {"__type": ..., "message":
// ...}, and {"Error": {"Code": ..., "Message": ...}}.
func ParseErrorBody(body []byte) (ErrorDetails, bool) {
	if len(body) == 0 {
		return ErrorDetails{}, false
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ErrorDetails{}, false
	}

	if nested, ok := raw["Error"].(map[string]interface{}); ok {
		raw = nested
	}

	details := ErrorDetails{
		Code:    firstString(raw, "code", "Code"),
		Type:    firstString(raw, "type", "Type", "fault"),
		Message: firstString(raw, "message", "Message"),
	}

	// The "__type" field carries "namespace#Code"; keep only the code.
	if details.Code == "" {
		if full := firstString(raw, "__type"); full != "" {
			if idx := strings.LastIndex(full, "#"); idx >= 0 {
				full = full[idx+1:]
			}

			details.Code = full
		}
	}

	if details.Code == "" && details.Message == "" {
		return ErrorDetails{}, false
	}

	return details, true
}

func firstString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			return value
		}
	}

	return ""
}

// Static errors for err113 compliance.
var (
	ErrEndpointRequired     = errors.New("endpoint is required")
	ErrModelRequired        = errors.New("service model is required")
	ErrConfigRequired       = errors.New("config is required")
	ErrCommandRequired      = errors.New("command is required")
	ErrFutureCancelled      = errors.New("deferred result was cancelled")
	ErrWaitAttemptsExceeded = errors.New("exceeded max attempts without reaching the desired state")
)
