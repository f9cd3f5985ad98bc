package avito

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned when no account id is set.
var ErrNotConfigured = errors.New("avito: account id is not configured")

// ErrToken wraps failures to obtain an access token. Fallback chains stop on it.
var ErrToken = errors.New("avito: token")

// APIError is a non-2xx response from the marketplace API.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("avito api error %d on %s: %s", e.Status, e.Path, e.Body)
}

// IsNotFound reports whether err carries a 404 response.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// StatusOf returns the HTTP status of an APIError in err's chain, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
