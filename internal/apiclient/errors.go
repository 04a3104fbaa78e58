package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not-found"
	KindUpstream     Kind = "upstream-unavailable"
	KindConnectivity Kind = "connectivity"
	KindUnexpected   Kind = "unexpected"
)

// User-facing messages for failures without a backend detail.
const (
	MsgNotFound     = "Location not found. Try a city name, zip code, or coordinates."
	MsgUpstream     = "Weather data is temporarily unavailable. Please try again later."
	MsgConnectivity = "Unable to connect to the server. Please try again."
	MsgUnexpected   = "An unexpected error occurred. Please try again."
)

// Error is the only error type returned by Client methods. Callers are
// expected to show Message and nothing else.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Message extracts the user-facing text from any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return MsgUnexpected
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func connectivityError(err error) *Error {
	return &Error{Kind: KindConnectivity, Message: MsgConnectivity, Err: err}
}

func unexpectedError(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: err}
}

// statusError maps a non-2xx response to an *Error. A backend "detail"
// (string, or list of {msg}) wins over the generic per-status text.
func statusError(status int, body []byte) *Error {
	e := &Error{Status: status}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusBadGateway:
		e.Kind = KindUpstream
	default:
		e.Kind = KindUnexpected
	}

	if detail, ok := parseDetail(body); ok {
		e.Message = detail
		return e
	}

	switch e.Kind {
	case KindNotFound:
		e.Message = MsgNotFound
	case KindUpstream:
		e.Message = MsgUpstream
	default:
		e.Message = MsgUnexpected
	}
	return e
}

func parseDetail(body []byte) (string, bool) {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return "", false
	}
	// A null or blank detail falls through to the per-status text.
	if string(payload.Detail) == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s, strings.TrimSpace(s) != ""
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; "), len(msgs) > 0
	}

	return "", false
}
