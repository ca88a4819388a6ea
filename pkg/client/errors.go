package client

import (
	"fmt"
	"strings"
)

// TransportError means the server could not be reached or did not answer
// in time.
type TransportError struct {
	BaseURL string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("could not connect to %s", e.BaseURL)
	}
	return fmt.Sprintf("could not connect to %s: %s", e.BaseURL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is a non-2xx answer. The server writes its bodies for humans,
// so the body is the message.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("server answered %d", e.StatusCode)
	}
	return e.Body
}
