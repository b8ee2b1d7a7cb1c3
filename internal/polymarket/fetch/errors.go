package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport means the request could not be completed: the transport
	// failed or the remote kept answering with a transient status until the
	// retry budget ran out.
	ErrTransport = errors.New("transport failure")

	// ErrNotFound means the remote reported absence (404) for a request that
	// opted in to treating 404 as an answer. Cached absences report it too.
	ErrNotFound = errors.New("not found")

	// ErrRemoteData means the remote answered 2xx with a body that is not JSON.
	ErrRemoteData = errors.New("malformed remote data")
)

// StatusError is a non-2xx answer from the remote
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Code == http.StatusUnauthorized {
		return fmt.Sprintf("401 Unauthorized from %s - check credentials", e.URL)
	}
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.Code, e.URL, body)
}

// retryableStatus reports whether the remote answered with a transient status.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
