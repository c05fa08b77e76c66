package fetch

import (
	"errors"
	"fmt"
)

// Category classifies a failed fetch.
type Category int

const (
	// CategoryTransport covers connection failures, timeouts and unreadable bodies.
	CategoryTransport Category = iota
	// CategoryUnauthorized is an HTTP 401.
	CategoryUnauthorized
	// CategoryNotFound is an HTTP 404.
	CategoryNotFound
	// CategoryServerError is any other non-2xx status.
	CategoryServerError
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryTransport:
		return "transport"
	case CategoryUnauthorized:
		return "unauthorized"
	case CategoryNotFound:
		return "not_found"
	case CategoryServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Error is the categorized failure returned by a Fetcher.
type Error struct {
	Category Category
	Status   int // HTTP status, 0 for transport failures
	URL      string
	Message  string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d): %s", e.URL, e.Category, e.Status, e.Message)
	}
	return fmt.Sprintf("fetch %s: %s: %s", e.URL, e.Category, e.Message)
}

// retryable reports whether another attempt could plausibly succeed.
func (e *Error) retryable() bool {
	return e.Category == CategoryTransport || (e.Category == CategoryServerError && e.Status >= 500)
}

// CategoryOf returns the category of err, or CategoryTransport for errors
// that did not come from a Fetcher.
func CategoryOf(err error) Category {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	return CategoryTransport
}

// IsNotFound reports whether err is a 404 from a Fetcher.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Category == CategoryNotFound
}

// IsUnauthorized reports whether err is a 401 from a Fetcher.
func IsUnauthorized(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Category == CategoryUnauthorized
}

func statusError(url string, status int, body string) *Error {
	category := CategoryServerError
	switch status {
	case 401:
		category = CategoryUnauthorized
	case 404:
		category = CategoryNotFound
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return &Error{Category: category, Status: status, URL: url, Message: body}
}

func transportError(url string, err error) *Error {
	return &Error{Category: CategoryTransport, URL: url, Message: err.Error()}
}
