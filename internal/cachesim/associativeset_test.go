package cachesim

import (
	"testing"
	"time"

	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func vec(n uint16) feature.Vector {
	var v feature.Vector
	v[1] = n
	return v
}

func TestInsertThenUpdateIsHit(t *testing.T) {
	s := New(Config{Entries: 4, Insert: InsertMRU, Replace: ReplaceLRU})
	now := time.Unix(0, 0)

	_, had := s.Insert(flowkey.ID(1), now, vec(1))
	require.False(t, had)
	require.Equal(t, 1, s.Size())

	hit, _, _ := s.Update(flowkey.ID(1), now.Add(time.Second), vec(1))
	require.True(t, hit)
	require.EqualValues(t, 1, s.Hits())
}

func TestLRUEvictsOldestOnCapacity(t *testing.T) {
	s := New(Config{Entries: 2, Insert: InsertMRU, Replace: ReplaceLRU})
	now := time.Unix(0, 0)

	s.Insert(flowkey.ID(1), now, vec(1))
	s.Insert(flowkey.ID(2), now, vec(2))
	evicted, had := s.Insert(flowkey.ID(3), now, vec(3))

	require.True(t, had)
	require.Equal(t, flowkey.ID(1), evicted, "LRU replacement should evict the least recently touched entry")
	require.Equal(t, 2, s.Size())
}

func TestUpdatePromotesToMRUAndProtectsFromEviction(t *testing.T) {
	s := New(Config{Entries: 2, Insert: InsertMRU, Replace: ReplaceLRU})
	now := time.Unix(0, 0)

	s.Insert(flowkey.ID(1), now, vec(1))
	s.Insert(flowkey.ID(2), now, vec(2))
	// Touch 1 again, promoting it to MRU ahead of 2.
	s.Update(flowkey.ID(1), now.Add(time.Second), vec(1))

	evicted, had := s.Insert(flowkey.ID(3), now, vec(3))
	require.True(t, had)
	require.Equal(t, flowkey.ID(2), evicted)
}

func TestMRUReplacementEvictsMostRecentlyUsed(t *testing.T) {
	s := New(Config{Entries: 2, Insert: InsertMRU, Replace: ReplaceMRU})
	now := time.Unix(0, 0)

	s.Insert(flowkey.ID(1), now, vec(1))
	s.Insert(flowkey.ID(2), now, vec(2))

	evicted, had := s.Insert(flowkey.ID(3), now, vec(3))
	require.True(t, had)
	require.Equal(t, flowkey.ID(2), evicted, "MRU replacement should evict the most recently inserted entry")
}

func TestFlushSingleEntry(t *testing.T) {
	s := New(Config{Entries: 4, Insert: InsertMRU, Replace: ReplaceLRU})
	now := time.Unix(0, 0)
	s.Insert(flowkey.ID(1), now, vec(1))

	id := flowkey.ID(1)
	s.Flush(&id)
	require.Equal(t, 0, s.Size())
}

func TestFlushAll(t *testing.T) {
	s := New(Config{Entries: 4, Insert: InsertMRU, Replace: ReplaceLRU})
	now := time.Unix(0, 0)
	s.Insert(flowkey.ID(1), now, vec(1))
	s.Insert(flowkey.ID(2), now, vec(2))

	s.Flush(nil)
	require.Equal(t, 0, s.Size())
}

func TestBypassPolicyPredictsDistantForUnseenKeys(t *testing.T) {
	s := New(Config{Entries: 4, Insert: InsertBypass, Replace: ReplaceLRU})
	now := time.Unix(0, 0)

	s.Insert(flowkey.ID(1), now, vec(1))

	// A never-before-seen key predicts distant reuse and is inserted at
	// the LRU end rather than bypassed outright (only HP_BYPASS can
	// decline admission entirely).
	_, had := s.Insert(flowkey.ID(2), now, vec(2))
	require.False(t, had)
	require.Equal(t, 2, s.Size())
	require.EqualValues(t, 1, s.InsertPredictDistant())
}

func TestSRRIPAgesEntriesUntilVictimFound(t *testing.T) {
	s := New(Config{Entries: 2, Insert: InsertMRU, Replace: ReplaceSRRIP})
	now := time.Unix(0, 0)

	s.Insert(flowkey.ID(1), now, vec(1))
	s.Insert(flowkey.ID(2), now, vec(2))

	_, had := s.Insert(flowkey.ID(3), now, vec(3))
	require.True(t, had)
	require.Equal(t, 2, s.Size())
}
