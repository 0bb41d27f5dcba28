package domain

import (
	"fmt"
	"strings"
)

// Nation is the only supported nation identifier.
const Nation = "USA"

// Granularity is the narrowest level a Location identifies.
type Granularity int

const (
	GranularityNation Granularity = iota
	GranularityState
	GranularityCounty
)

func (g Granularity) String() string {
	switch g {
	case GranularityState:
		return "state"
	case GranularityCounty:
		return "county"
	default:
		return "nation"
	}
}

// Location identifies a nation, state or county. Empty fields are absent.
// State holds a postal abbreviation. The struct is comparable and safe to use
// as a map key.
type Location struct {
	Nation string `json:"nation"`
	State  string `json:"state,omitempty"`
	County string `json:"county,omitempty"`
}

// NationLocation returns the whole-USA location.
func NationLocation() Location {
	return Location{Nation: Nation}
}

// ParseLocation parses comma-separated tokens such as "Allegheny, PA",
// "Pennsylvania" or "USA". Token order does not matter. One token may be a
// state (abbreviation or full name), "USA" marks the nation, and at most one
// remaining token names the county.
func ParseLocation(text string) (Location, error) {
	var (
		sawNation bool
		abbrevs   []State
		names     []State
		rest      []string
	)

	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.EqualFold(tok, Nation) {
			sawNation = true
			continue
		}
		if st, ok := lookupAbbrev(tok); ok {
			abbrevs = append(abbrevs, st)
			continue
		}
		if st, ok := lookupName(tok); ok {
			names = append(names, st)
			continue
		}
		rest = append(rest, tok)
	}

	if !sawNation && len(abbrevs) == 0 && len(names) == 0 {
		return Location{}, fmt.Errorf("%w: %q", ErrUnparseableLocation, text)
	}

	// An abbreviation wins over a full name so that "Washington, PA" reads as
	// Washington County, Pennsylvania.
	var state State
	switch {
	case len(abbrevs) > 1:
		return Location{}, fmt.Errorf("%w: %q names %d states", ErrAmbiguousLocation, text, len(abbrevs))
	case len(abbrevs) == 1:
		state = abbrevs[0]
		for _, n := range names {
			rest = append(rest, n.Name)
		}
	case len(names) > 1:
		return Location{}, fmt.Errorf("%w: %q names %d states", ErrAmbiguousLocation, text, len(names))
	case len(names) == 1:
		state = names[0]
	}

	if len(rest) > 1 {
		return Location{}, fmt.Errorf("%w: %q has unmatched tokens %q", ErrAmbiguousLocation, text, rest)
	}

	loc := Location{Nation: Nation, State: state.Abbrev}
	if len(rest) == 1 {
		if loc.State == "" {
			return Location{}, fmt.Errorf("%w: county %q without a state", ErrUnparseableLocation, rest[0])
		}
		loc.County = rest[0]
	}
	return loc, nil
}

// DropCounty returns the location widened to state granularity.
func (l Location) DropCounty() Location {
	l.County = ""
	return l
}

// Granularity reports the narrowest level set on l.
func (l Location) Granularity() Granularity {
	switch {
	case l.County != "":
		return GranularityCounty
	case l.State != "":
		return GranularityState
	default:
		return GranularityNation
	}
}

// String joins county, state and nation, skipping blanks: "Allegheny, PA, USA".
func (l Location) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.County, l.State, l.Nation} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
