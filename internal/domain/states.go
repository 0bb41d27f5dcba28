package domain

import (
	"fmt"
	"strings"
)

// State pairs a canonical US state name with its postal abbreviation.
type State struct {
	Name   string
	Abbrev string
}

// states covers the 50 states plus the District of Columbia.
var states = []State{
	{"Alabama", "AL"},
	{"Alaska", "AK"},
	{"Arizona", "AZ"},
	{"Arkansas", "AR"},
	{"California", "CA"},
	{"Colorado", "CO"},
	{"Connecticut", "CT"},
	{"Delaware", "DE"},
	{"District of Columbia", "DC"},
	{"Florida", "FL"},
	{"Georgia", "GA"},
	{"Hawaii", "HI"},
	{"Idaho", "ID"},
	{"Illinois", "IL"},
	{"Indiana", "IN"},
	{"Iowa", "IA"},
	{"Kansas", "KS"},
	{"Kentucky", "KY"},
	{"Louisiana", "LA"},
	{"Maine", "ME"},
	{"Maryland", "MD"},
	{"Massachusetts", "MA"},
	{"Michigan", "MI"},
	{"Minnesota", "MN"},
	{"Mississippi", "MS"},
	{"Missouri", "MO"},
	{"Montana", "MT"},
	{"Nebraska", "NE"},
	{"Nevada", "NV"},
	{"New Hampshire", "NH"},
	{"New Jersey", "NJ"},
	{"New Mexico", "NM"},
	{"New York", "NY"},
	{"North Carolina", "NC"},
	{"North Dakota", "ND"},
	{"Ohio", "OH"},
	{"Oklahoma", "OK"},
	{"Oregon", "OR"},
	{"Pennsylvania", "PA"},
	{"Rhode Island", "RI"},
	{"South Carolina", "SC"},
	{"South Dakota", "SD"},
	{"Tennessee", "TN"},
	{"Texas", "TX"},
	{"Utah", "UT"},
	{"Vermont", "VT"},
	{"Virginia", "VA"},
	{"Washington", "WA"},
	{"West Virginia", "WV"},
	{"Wisconsin", "WI"},
	{"Wyoming", "WY"},
}

var (
	statesByAbbrev = make(map[string]State, len(states))
	statesByName   = make(map[string]State, len(states))
)

func init() {
	for _, s := range states {
		statesByAbbrev[s.Abbrev] = s
		statesByName[s.Name] = s
	}
}

// LookupState resolves s as a postal abbreviation (case-insensitive) and then
// as a canonical full name (case-sensitive).
func LookupState(s string) (State, error) {
	s = strings.TrimSpace(s)
	if st, ok := lookupAbbrev(s); ok {
		return st, nil
	}
	if st, ok := lookupName(s); ok {
		return st, nil
	}
	return State{}, fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// States returns the supported states in alphabetical order of name.
func States() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

func lookupAbbrev(s string) (State, bool) {
	st, ok := statesByAbbrev[strings.ToUpper(s)]
	return st, ok
}

func lookupName(s string) (State, bool) {
	st, ok := statesByName[s]
	return st, ok
}
