package domain

import (
	"context"
	"fmt"
)

// CSVFetcher retrieves the raw CSV payload a provider publishes under key.
// Failures are reported as *FetchError.
type CSVFetcher interface {
	FetchCSV(ctx context.Context, provider, key string) ([]byte, error)
}

// Source is an upstream feed normalized to daily series.
type Source interface {
	// Name identifies the provider, e.g. "nytimes".
	Name() string

	// Series returns the whole-nation aggregate.
	Series() (*Series, error)

	// State narrows the source to one state, given as abbreviation or full
	// name. It fails with ErrUnknownState when the state has no rows.
	State(state string) (StateSource, error)

	// Checksum fingerprints the raw payload the source was built from.
	Checksum() string
}

// StateSource is a source narrowed to a single state.
type StateSource interface {
	Series() (*Series, error)

	// County narrows further. It fails with ErrCountyDataUnavailable when the
	// provider has no county data at all, and ErrUnknownCounty when the county
	// has no rows in this state.
	County(county string) (*Series, error)
}

// Resolve walks src from the nation down to the granularity of loc.
func Resolve(src Source, loc Location) (*Series, error) {
	if loc.State == "" {
		s, err := src.Series()
		if err != nil {
			return nil, fmt.Errorf("resolve %s from %s: %w", loc, src.Name(), err)
		}
		return s, nil
	}

	st, err := src.State(loc.State)
	if err != nil {
		return nil, fmt.Errorf("resolve %s from %s: %w", loc, src.Name(), err)
	}

	var s *Series
	if loc.County == "" {
		s, err = st.Series()
	} else {
		s, err = st.County(loc.County)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s from %s: %w", loc, src.Name(), err)
	}
	return s, nil
}
