package ai

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable means every retry attempt against the text-generation
// service failed with a transient error.
var ErrModelUnavailable = errors.New("model unavailable")

// MalformedError is returned when the model's output could not be parsed
// even after repair. Raw carries the original text for logs only; it must
// never reach an API response.
type MalformedError struct {
	Raw string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// HTTPError lets providers (and test fakes) surface an upstream HTTP status
// so the retry policy can classify it.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("model http status %d", e.StatusCode)
}
