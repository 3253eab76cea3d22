// Package engerr defines the error taxonomy the engine surfaces across the
// UI boundary. Nothing is thrown: every fatal condition is a value with a
// Kind and a human string, per the error-handling design.
package engerr

import "fmt"

// Kind is a closed set of error classifications the iteration loop (and its
// callers) can switch on, distinct from the underlying raw error.
type Kind string

const (
	KindAuth                  Kind = "auth"
	KindQuota                 Kind = "quota"
	KindRateLimit             Kind = "rate-limit"
	KindModelNotFound         Kind = "model-not-found"
	KindBadRequest            Kind = "bad-request"
	KindMalformedFunctionCall Kind = "malformed-function-call"
	KindSafetyBlocked         Kind = "safety-blocked"
	KindMaxTokens             Kind = "max-tokens"
	KindTransport             Kind = "transport"
	KindToolError             Kind = "tool-error"
	KindToolValidationError   Kind = "tool-validation-error"
	KindPrunerFailure         Kind = "pruner-failure"
	KindInvariantViolation    Kind = "invariant-violation"
	KindUnknown               Kind = "unknown"
)

// humanMessages gives each Kind a UI-safe one-liner, independent of the raw
// provider/transport error text (which is preserved separately for logs).
var humanMessages = map[Kind]string{
	KindAuth:                  "authentication with the provider failed; check the configured API key",
	KindQuota:                 "the provider account has exhausted its quota",
	KindRateLimit:             "the provider rate-limited this request",
	KindModelNotFound:         "the requested model is not available for this provider",
	KindBadRequest:            "the provider rejected the request as malformed",
	KindMalformedFunctionCall: "the model produced a function call the provider could not parse",
	KindSafetyBlocked:         "the provider blocked the response on safety grounds",
	KindMaxTokens:             "the response was truncated by the provider's token limit",
	KindTransport:             "the request to the provider timed out or failed in transit",
	KindToolError:             "a tool invocation failed",
	KindToolValidationError:   "a tool invocation had invalid arguments",
	KindPrunerFailure:         "history could not be pruned to fit the token budget",
	KindInvariantViolation:    "the conversation history was malformed and had to be repaired",
	KindUnknown:               "an unexpected error occurred",
}

// Error is the value-typed error every package in this module should
// return instead of a bare error once the failure is terminal to a turn.
type Error struct {
	Kind    Kind
	Message string // human string, safe to show the UI
	Cause   error  // raw underlying error, for logs only
}

func New(kind Kind, cause error) *Error {
	msg, ok := humanMessages[kind]
	if !ok {
		msg = humanMessages[KindUnknown]
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As extracts an *Error from err, mirroring errors.As ergonomics without
// forcing every caller to import "errors" for this one pattern.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
