package broker

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAlreadyExists is returned by CreateEntity on 409; use UpsertEntities instead.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrNotFound marks a 404 from the broker.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx broker response.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("broker %s: status %d: %s", e.Operation, e.StatusCode, body)
}

// Transient reports whether the response is worth retrying (5xx only).
func (e *StatusError) Transient() bool {
	return e.StatusCode >= 500
}

// Unwrap maps 404 and 409 onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrAlreadyExists
	default:
		return nil
	}
}
