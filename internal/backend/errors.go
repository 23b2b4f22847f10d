package backend

import (
	"fmt"
	"net/http"
)

// NetworkError represents a network-related failure
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	msg := "network error"
	if e.URL != "" {
		msg += fmt.Sprintf(" accessing %s", e.URL)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status: %d %s)", e.Status, http.StatusText(e.Status))
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError reports a response whose status was not acceptable to the
// caller.
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s returned %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
	if e.Message != "" {
		msg += fmt.Sprintf(": %s", e.Message)
	}
	return msg
}

// CheckStatus converts a non-2xx response into a StatusError. The message is
// taken from the body's "detail", "error" or "message" field when present.
func CheckStatus(endpoint string, resp *Response) error {
	if resp.OK() {
		return nil
	}
	if resp == nil {
		return &StatusError{Endpoint: endpoint}
	}
	return &StatusError{
		Endpoint: endpoint,
		Status:   resp.Status,
		Message:  messageFrom(resp.JSON),
	}
}

func messageFrom(body map[string]any) string {
	for _, key := range []string{"detail", "error", "message"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
