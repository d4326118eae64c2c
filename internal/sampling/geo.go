package sampling

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"flowlab.dev/flowlab/internal/errors"
)

// GeoEnricher annotates retired flow samples with a GeoIP country code for
// the flow's destination address, using an optional MaxMind GeoLite2
// Country database. Nothing in the sampling RPCs requires it — a Server or
// MemoryStore population path that never configures one simply leaves
// FlowSample.DstCountry empty.
type GeoEnricher struct {
	reader *geoip2.Reader
}

// OpenGeoEnricher opens the GeoIP2/GeoLite2 country database at path.
func OpenGeoEnricher(path string) (*GeoEnricher, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Inconsistent, "opening geoip database")
	}
	return &GeoEnricher{reader: reader}, nil
}

// Close releases the underlying database's memory-mapped file.
func (g *GeoEnricher) Close() error { return g.reader.Close() }

// Country returns the ISO country code for dstIP, or "" if the address
// isn't present in the database (common for private/reserved ranges).
func (g *GeoEnricher) Country(dstIP uint32) string {
	ip := make(net.IP, 4)
	ip[0] = byte(dstIP >> 24)
	ip[1] = byte(dstIP >> 16)
	ip[2] = byte(dstIP >> 8)
	ip[3] = byte(dstIP)

	record, err := g.reader.Country(ip)
	if err != nil || record == nil {
		return ""
	}
	return record.Country.IsoCode
}

// Enrich sets sample.DstCountry from dstIP when g is non-nil, otherwise it
// is a no-op so callers can wire an optional enricher without a nil check
// at every call site.
func (g *GeoEnricher) Enrich(sample *FlowSample, dstIP uint32) {
	if g == nil {
		return
	}
	sample.DstCountry = g.Country(dstIP)
}
