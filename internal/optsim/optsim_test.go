package optsim

import (
	"testing"
	"time"

	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholdMatchesMINBehavior(t *testing.T) {
	m := New(4, DefaultBypassThreshold)
	now := time.Unix(0, 0)

	m.Insert(flowkey.ID(1), now)
	require.EqualValues(t, 1, m.CompulsoryMiss())
	require.EqualValues(t, 0, m.BypassMiss())

	hit := m.Update(flowkey.ID(1), now.Add(time.Second))
	require.True(t, hit)
	require.EqualValues(t, 1, m.Hits())
}

func TestOneHitWonderIsBypassedBelowThreshold(t *testing.T) {
	m := New(4, 2)
	now := time.Unix(0, 0)

	// First-ever access to a key does not yet meet the re-reference
	// window, so it is charged as a bypass miss rather than a
	// compulsory miss.
	m.Insert(flowkey.ID(1), now)
	require.EqualValues(t, 0, m.CompulsoryMiss())
	require.EqualValues(t, 1, m.BypassMiss())
}

func TestReReferenceWindowEarnsReservation(t *testing.T) {
	m := New(4, 2)
	now := time.Unix(0, 0)

	m.Insert(flowkey.ID(1), now)
	hit := m.Update(flowkey.ID(1), now.Add(time.Second))
	// The second access meets the threshold and opens a reservation, but
	// as a fresh reservation rather than a hit against one that didn't
	// exist yet.
	require.False(t, hit)
	require.EqualValues(t, 1, m.CapacityMiss())

	hit = m.Update(flowkey.ID(1), now.Add(2*time.Second))
	require.True(t, hit)
}

func TestAccessAccountingIsExhaustiveAcrossCategories(t *testing.T) {
	m := New(2, 2)
	now := time.Unix(0, 0)
	keys := []flowkey.ID{1, 2, 1, 3, 1, 2}

	processed := uint64(0)
	seen := make(map[flowkey.ID]bool)
	for _, k := range keys {
		if !seen[k] {
			m.Insert(k, now)
			seen[k] = true
		} else {
			m.Update(k, now)
		}
		processed++
	}

	require.Equal(t, processed, m.Hits()+m.CompulsoryMiss()+m.CapacityMiss()+m.BypassMiss())
}

// TestStaircasePatternRecognizesEventualHits mirrors minsim's regression
// for the same bug: a reservation whose span begins after the lagging
// barrier (FirstCol > barrier) must still count as covered, since covers
// only checks the upper bound. Getting this wrong misclassifies every
// live repeat in an undersized-cache staircase as a capacity miss.
func TestStaircasePatternRecognizesEventualHits(t *testing.T) {
	const n = 4
	m := New(n-1, DefaultBypassThreshold)
	now := time.Unix(0, 0)

	for k := flowkey.ID(0); k < n; k++ {
		m.Insert(k, now)
	}
	for round := 0; round < 3; round++ {
		for k := flowkey.ID(0); k < n; k++ {
			now = now.Add(time.Second)
			m.Update(k, now)
		}
	}

	require.Greater(t, m.Hits(), uint64(0))
}

func TestTrimToBarrierSpansCompacts(t *testing.T) {
	m := New(1, DefaultBypassThreshold)
	now := time.Unix(0, 0)

	m.Insert(flowkey.ID(1), now)
	m.Update(flowkey.ID(1), now.Add(time.Second))
	m.Update(flowkey.ID(2), now.Add(2*time.Second))

	evicted, kept := m.TrimToBarrierSpans()
	require.LessOrEqual(t, len(evicted)+len(kept), 2)
}
