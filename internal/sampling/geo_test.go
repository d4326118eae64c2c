package sampling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeoEnricherNilIsNoOp(t *testing.T) {
	var g *GeoEnricher
	sample := FlowSample{}
	g.Enrich(&sample, 0x08080808)
	require.Empty(t, sample.DstCountry)
}
