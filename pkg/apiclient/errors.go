package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SecuritySensitiveCause is the error cause the ledger reports when the
// presented token is no longer accepted.
const SecuritySensitiveCause = "A security-sensitive error has been received"

// AuthenticationError reports a failed token request.
type AuthenticationError struct {
	URL    string
	Status int
	Body   any
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e == nil {
		return "authentication failed"
	}
	if e.Body != nil && e.Body != "" {
		return "authentication failed: " + describeBody(e.Body)
	}
	if e.Err != nil {
		return "authentication failed: " + e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthenticationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// APIError reports a non-2xx response. Body holds the decoded JSON error
// body when the server sent one, otherwise the raw text.
type APIError struct {
	Method     string
	URL        string
	Status     int
	StatusText string
	Body       any
}

func (e *APIError) Error() string {
	if e == nil {
		return "request failed"
	}
	message := fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.Status)
	if e.Body != nil && e.Body != "" {
		message += ": " + describeBody(e.Body)
	}
	return message
}

// Cause returns the "cause" field of a JSON error body.
func (e *APIError) Cause() string {
	if e == nil {
		return ""
	}
	body, ok := e.Body.(map[string]any)
	if !ok {
		return ""
	}
	cause, _ := body["cause"].(string)
	return cause
}

// TransportError reports a request that never produced a response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DescribeBody renders an error body for messages: strings verbatim, other
// values as compact JSON.
func DescribeBody(body any) string {
	return describeBody(body)
}

func describeBody(body any) string {
	if text, ok := body.(string); ok {
		return strings.TrimSpace(text)
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("%v", body)
	}
	return string(encoded)
}

func parseErrorBody(body []byte) any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		return parsed
	}
	return trimmed
}
