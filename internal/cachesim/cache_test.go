package cachesim

import (
	"testing"
	"time"

	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func TestCacheFullyAssociativeHitsAndMisses(t *testing.T) {
	c, err := NewCache(Config{Entries: 2, Insert: InsertMRU, Replace: ReplaceLRU})
	require.NoError(t, err)
	now := time.Unix(0, 0)

	c.Insert(flowkey.ID(1), now, vec(1))
	res := c.Update(flowkey.ID(1), now, vec(1))
	require.True(t, res.Hit)
	require.Equal(t, ClassHit, res.Classification)

	res = c.Update(flowkey.ID(2), now, vec(2))
	require.False(t, res.Hit)
	require.Equal(t, ClassCapacityMiss, res.Classification)
}

func TestCacheRejectsNonDivisibleAssociativity(t *testing.T) {
	_, err := NewCache(Config{Entries: 10, Ways: 3, Insert: InsertMRU, Replace: ReplaceLRU})
	require.Error(t, err)
}

func TestCacheSetAssociativeSplitsIntoMultipleSets(t *testing.T) {
	c, err := NewCache(Config{Entries: 4, Ways: 2, Insert: InsertMRU, Replace: ReplaceLRU})
	require.NoError(t, err)
	require.Equal(t, 2, c.NumSets())
	require.Equal(t, 2, c.Ways())
}

func TestCacheConflictMissDetectedAgainstFAReference(t *testing.T) {
	// A single-way set (Ways=1) forces every key into its own direct-mapped
	// slot, so two keys landing on the same set index will thrash even
	// though the fully-associative reference could hold both.
	c, err := NewCache(Config{Entries: 2, Ways: 1, Insert: InsertMRU, Replace: ReplaceLRU})
	require.NoError(t, err)
	now := time.Unix(0, 0)

	var conflict bool
	for i := flowkey.ID(0); i < 64 && !conflict; i++ {
		for j := flowkey.ID(0); j < 64 && !conflict; j++ {
			if i == j {
				continue
			}
			cc, _ := NewCache(Config{Entries: 2, Ways: 1, Insert: InsertMRU, Replace: ReplaceLRU})
			cc.Insert(i, now, vec(uint16(i)))
			cc.Insert(j, now, vec(uint16(j)))
			res := cc.Update(i, now, vec(uint16(i)))
			if res.Classification == ClassConflictMiss {
				conflict = true
			}
		}
	}
	require.True(t, conflict, "expected at least one key pair to collide under direct-mapped sets")
	_ = c
}

func TestCacheStatsAggregatesAcrossSets(t *testing.T) {
	c, err := NewCache(Config{Entries: 4, Ways: 2, Insert: InsertMRU, Replace: ReplaceLRU})
	require.NoError(t, err)
	now := time.Unix(0, 0)

	for i := flowkey.ID(0); i < 4; i++ {
		c.Insert(i, now, vec(uint16(i)))
	}
	stats := c.Stats()
	require.EqualValues(t, 4, stats.CompulsoryMiss)
}
