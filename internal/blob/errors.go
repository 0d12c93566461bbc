package blob

import (
	"errors"
	"fmt"

	"consentbroker/internal/sentinel"
)

// Category normalizes backend failures so the router can decide what trips
// the breaker regardless of which SDK produced the error.
type Category string

const (
	CategoryTimeout  Category = "timeout"
	CategoryNotFound Category = "not_found"
	CategoryAuth     Category = "authentication"
	CategoryOutage   Category = "outage"
	CategoryBadData  Category = "bad_data"
	CategoryTooLarge Category = "too_large"
)

// FetchError wraps a backend failure with its category.
type FetchError struct {
	Category Category
	Scheme   string
	Message  string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("blob %s [%s]: %s: %v", e.Scheme, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("blob %s [%s]: %s", e.Scheme, e.Category, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets callers match missing objects with sentinel.ErrNotFound.
func (e *FetchError) Is(target error) bool {
	return target == sentinel.ErrNotFound && e.Category == CategoryNotFound
}

func newFetchError(category Category, scheme, message string, err error) *FetchError {
	return &FetchError{Category: category, Scheme: scheme, Message: message, Err: err}
}

// countsAsHealthy reports whether a failure says nothing about backend health.
func countsAsHealthy(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Category {
	case CategoryNotFound, CategoryBadData, CategoryTooLarge:
		return true
	default:
		return false
	}
}
