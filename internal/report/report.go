// Package report builds the per-metric, per-window figures of a request from
// the upstream sources and delivers them to sinks.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
)

// ErrUnchanged is returned by sinks that decline to rewrite output built from
// the same upstream data as last time.
var ErrUnchanged = errors.New("report unchanged")

// Report is the result of one build.
type Report struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Request     Request    `json:"request"`
	Checksums   []Checksum `json:"checksums"`
	Figures     []Figure   `json:"figures"`
	Skipped     []Skipped  `json:"skipped,omitempty"`
}

// Checksum fingerprints one upstream payload a report was built from.
type Checksum struct {
	Provider string `json:"provider"`
	SHA256   string `json:"sha256"`
}

// Figure is one metric at one window across all requested locations.
type Figure struct {
	Metric string  `json:"metric"`
	Window int     `json:"window"`
	Column string  `json:"column"`
	Series []Trace `json:"series"`
}

// Trace is the series of a single location within a figure.
type Trace struct {
	Location domain.Location      `json:"location"`
	Label    string               `json:"label"`
	Records  []domain.DailyRecord `json:"records"`
}

// Skipped records a figure that could not be built.
type Skipped struct {
	Metric string `json:"metric"`
	Window int    `json:"window"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// ChecksumDigest renders a fingerprint of the request followed by the
// checksums one per line, in build order. Two reports with equal digests
// answer the same request from identical upstream data. The digest is empty
// when no source was loaded or the request cannot be encoded.
func (r *Report) ChecksumDigest() string {
	if len(r.Checksums) == 0 {
		return ""
	}
	req, err := json.Marshal(r.Request)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(req)

	var b strings.Builder
	b.WriteString("request:")
	b.WriteString(hex.EncodeToString(sum[:]))
	b.WriteByte('\n')
	for _, c := range r.Checksums {
		b.WriteString(c.Provider)
		b.WriteByte(':')
		b.WriteString(c.SHA256)
		b.WriteByte('\n')
	}
	return b.String()
}

// skipReason maps a build error to a low-cardinality metric label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCountyDataUnavailable):
		return "county_data_unavailable"
	case errors.Is(err, domain.ErrUnknownCounty):
		return "unknown_county"
	case errors.Is(err, domain.ErrUnknownState):
		return "unknown_state"
	case errors.Is(err, domain.ErrColumnUnavailable):
		return "column_unavailable"
	case errors.Is(err, domain.ErrPopulationUnavailable):
		return "population_unavailable"
	case errors.Is(err, domain.ErrFetchFailed):
		return "fetch_failed"
	default:
		return "error"
	}
}
