package pypi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotFound indicates a definitive "no such project" answer from the
	// index (HTTP 404). It is never returned for transport failures.
	ErrNotFound = errors.New("project not found on index")

	// ErrNoArtifact indicates the project exists but its selected release has
	// no downloadable distribution file.
	ErrNoArtifact = errors.New("release has no distribution artifact")
)

// MalformedResponseError indicates the index answered, but with data that
// could not be parsed as expected. It is not retryable.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed index response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TransientError indicates a failure that is worth retrying: timeouts,
// connection resets, 429s and 5xx-class responses.
type TransientError struct {
	Op     string
	Status int // HTTP status if the server answered, 0 otherwise
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: index returned %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (anywhere in its chain) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// IsMalformed reports whether err (anywhere in its chain) is a malformed
// index response.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// classifyHTTPError converts a failed request or an unexpected status code
// into the error taxonomy. A nil return means the status was acceptable.
func classifyHTTPError(op string, status int, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &TransientError{Op: op, Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Op: op, Status: status}
	default:
		return &MalformedResponseError{Op: op, Err: fmt.Errorf("unexpected status %d %s", status, http.StatusText(status))}
	}
}
