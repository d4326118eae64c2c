package trainer

import (
	"testing"
	"time"

	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func TestBeladyTrainerTracksFirstTouchAsInsert(t *testing.T) {
	r := &fakeReinforcer{}
	bt := NewBelady(DefaultBeladyConfig(r, 2))
	now := time.Unix(0, 0)

	bt.Touch(flowkey.ID(1), vec(1), now)
	require.Empty(t, r.calls, "a first-ever touch is a compulsory miss, nothing to reinforce yet")
}

func TestBeladyTrainerReinforcesEvictSetOnHit(t *testing.T) {
	r := &fakeReinforcer{}
	bt := NewBelady(DefaultBeladyConfig(r, 1))
	now := time.Unix(0, 0)

	bt.Touch(flowkey.ID(1), vec(1), now)
	bt.Touch(flowkey.ID(1), vec(1), now.Add(time.Second))
	bt.Touch(flowkey.ID(2), vec(2), now.Add(2*time.Second))

	// Enough accesses have passed that MIN's barrier should have
	// advanced and produced at least one hit somewhere in this
	// single-entry sequence, driving an evict-set reinforcement.
	bt.Touch(flowkey.ID(1), vec(1), now.Add(3*time.Second))

	for _, call := range r.calls {
		require.False(t, call.target, "evict-set reinforcement always trains toward non-cacheable")
	}
}

func TestBeladyTrainerKeepSetDisabledByDefault(t *testing.T) {
	cfg := DefaultBeladyConfig(&fakeReinforcer{}, 4)
	require.True(t, cfg.EnableEvictSetTraining)
	require.False(t, cfg.EnableKeepSetTraining)
}

func TestBeladyTrainerMergesFeaturesOnRepeatTouch(t *testing.T) {
	r := &fakeReinforcer{}
	bt := NewBelady(DefaultBeladyConfig(r, 4))
	now := time.Unix(0, 0)

	bt.Touch(flowkey.ID(1), vec(1), now)
	bt.Touch(flowkey.ID(1), vec(2), now.Add(time.Second))

	require.Equal(t, uint16(2), bt.features[flowkey.ID(1)][1])
}
