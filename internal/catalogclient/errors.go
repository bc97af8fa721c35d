package catalogclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the catalog. Detail is the backend's
// message, meant to be shown to the user as is.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Detail)
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a 2xx answer whose body could not be read as the expected
// JSON. The request reached the catalog, so it is not a transport failure.
type DecodeError struct {
	Op     string
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: unreadable %d response: %v", e.Op, e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the catalog.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// errorBody covers both {"detail": ...} and {"error": ...} envelopes.
type errorBody struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

func (b errorBody) message(status int) string {
	switch d := b.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case nil:
	default:
		return fmt.Sprint(d)
	}
	if b.Error != "" {
		return b.Error
	}
	return http.StatusText(status)
}
