package rest

import "fmt"

// RequestError is the structured error returned for failed ARI requests.
// Status carries the HTTP status code of the response; a Status of 0 means
// the request never produced a server response (timeout, connection refused,
// DNS failure) and the cause is available via Unwrap.
type RequestError struct {
	Status int
	Body   []byte
	cause  error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		if e.cause != nil {
			return fmt.Sprintf("ari: request failed: %v", e.cause)
		}
		return "ari: request failed"
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("ari: server returned status %d: %s", e.Status, string(e.Body))
	}
	return fmt.Sprintf("ari: server returned status %d", e.Status)
}

func (e *RequestError) Unwrap() error {
	return e.cause
}

// NewRequestError builds a RequestError for a server response.
func NewRequestError(status int, body []byte) *RequestError {
	return &RequestError{Status: status, Body: body}
}

// NewLocalError builds a RequestError for a request that never reached the
// server. Status is 0 to distinguish it from genuine server status codes.
func NewLocalError(cause error) *RequestError {
	return &RequestError{cause: cause}
}
