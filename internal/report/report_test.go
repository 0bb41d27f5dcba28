package report

import (
	"strings"
	"testing"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestReport_ChecksumDigest(t *testing.T) {
	sums := []Checksum{{Provider: "nytimes", SHA256: "aaa"}, {Provider: "census", SHA256: "ccc"}}
	usa := []domain.Location{domain.NationLocation()}

	cases := &Report{Request: Request{Locations: usa, Metrics: []string{"cases"}, Windows: []int{7}}, Checksums: sums}
	deaths := &Report{Request: Request{Locations: usa, Metrics: []string{"deaths"}, Windows: []int{7}}, Checksums: sums}
	wider := &Report{Request: Request{Locations: usa, Metrics: []string{"cases"}, Windows: []int{14}}, Checksums: sums}

	digest := cases.ChecksumDigest()
	lines := strings.Split(strings.TrimSuffix(digest, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "request:"), lines[0])
	assert.Equal(t, []string{"nytimes:aaa", "census:ccc"}, lines[1:])

	again := *cases
	assert.Equal(t, digest, again.ChecksumDigest())
	assert.NotEqual(t, digest, deaths.ChecksumDigest())
	assert.NotEqual(t, digest, wider.ChecksumDigest())

	assert.Empty(t, (&Report{Request: cases.Request}).ChecksumDigest(), "no sources loaded")
}
