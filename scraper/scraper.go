package scraper

import (
	"context"
	"errors"
	"fmt"

	"quota-scraper/models"
)

// Scraper is the fetch collaborator: it returns the raw result list for the
// requested pages. Entries may hold zero, one or two page payloads.
type Scraper interface {
	FetchScrapData(ctx context.Context, wantFirst, wantSecond bool) ([]models.RawResultEntry, error)
}

// ErrFetchFailure is the single failure category reported by scrapers
var ErrFetchFailure = errors.New("fetch failure")

// Error represents a failed fetch. Every cause collapses into ErrFetchFailure.
type Error struct {
	Op    string
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrFetchFailure, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrFetchFailure, e.Op)
}

// Unwrap returns the underlying error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports every *Error as ErrFetchFailure
func (e *Error) Is(target error) bool {
	return target == ErrFetchFailure
}

func newFetchError(op string, cause error) *Error {
	return &Error{Op: op, Cause: cause}
}
