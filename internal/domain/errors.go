package domain

import (
	"errors"
	"fmt"
)

// Location parsing errors: the input text itself is bad.
var (
	ErrUnparseableLocation = errors.New("unparseable location")
	ErrAmbiguousLocation   = errors.New("ambiguous location")
)

// Lookup errors: the text is valid but the data has nothing for it.
var (
	ErrUnknownState          = errors.New("unknown state")
	ErrUnknownCounty         = errors.New("unknown county")
	ErrPopulationUnavailable = errors.New("population unavailable")
)

// ErrCountyDataUnavailable reports a permanent capability gap: the source has
// no county column at all.
var ErrCountyDataUnavailable = errors.New("county data unavailable")

// ErrColumnUnavailable reports that a source never carried the requested
// count, as opposed to carrying zeros for it.
var ErrColumnUnavailable = errors.New("column unavailable")

// ErrFetchFailed is matched by every *FetchError.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError describes an unsuccessful retrieval of a raw upstream payload.
// StatusCode is zero when no HTTP response was received.
type FetchError struct {
	Provider   string
	Key        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s/%s: status %d: %s", e.Provider, e.Key, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("fetch %s/%s: %v", e.Provider, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetchFailed) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// Temporary reports whether retrying the request could succeed.
func (e *FetchError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
