package domain

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrOutOfStock          = errors.New("out of stock")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrPaymentRequired     = errors.New("payment required")
	ErrValidation          = errors.New("validation failed")
)

const MsgSomethingWentWrong = "Something went wrong!"

// Error pairs one of the sentinel kinds with the message shown to the caller.
type Error struct {
	Kind    error
	Message string
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(message string) *Error {
	return NewError(ErrNotFound, message)
}

func InvalidState(message string) *Error {
	return NewError(ErrInvalidState, message)
}

func Upstream(message string) *Error {
	return NewError(ErrUpstreamUnavailable, message)
}

// StatusOf maps an error to the envelope status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf returns the caller-facing message carried by err. Anything that is
// not a domain error is reported generically.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return MsgSomethingWentWrong
}

var reasons = []struct {
	kind   error
	reason string
}{
	{ErrNotFound, "not_found"},
	{ErrInvalidState, "invalid_state"},
	{ErrOutOfStock, "out_of_stock"},
	{ErrUpstreamUnavailable, "upstream_unavailable"},
	{ErrPaymentRequired, "payment_required"},
	{ErrValidation, "validation"},
}

// ReasonOf names the kind of err so a peer can rebuild it. It is empty for nil
// and for errors of no known kind.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.kind) {
			return r.reason
		}
	}
	return ""
}

// KindOfReply resolves the kind of a failed peer reply, preferring the reason
// the peer sent over the status code.
func KindOfReply(reason string, status int) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.kind
		}
	}
	return KindOf(status)
}

// KindOf is the inverse of StatusOf, used when an envelope arrives from a peer
// without a reason.
func KindOf(status int) error {
	switch status {
	case http.StatusPaymentRequired:
		return ErrPaymentRequired
	case http.StatusBadRequest, http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUpstreamUnavailable
	}
}
