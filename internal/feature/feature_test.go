package feature

import (
	"math/rand/v2"
	"testing"
	"time"

	"flowlab.dev/flowlab/internal/extract"
	"flowlab.dev/flowlab/internal/flowtable"
	"github.com/stretchr/testify/require"
)

func testRecord() *flowtable.Record {
	return &flowtable.Record{
		Start:   time.Unix(0, 0),
		Last:    time.Unix(0, 0),
		Packets: 3,
		Bytes:   180,
	}
}

func TestBuildIsDeterministicExceptControl(t *testing.T) {
	b := NewBuilder(rand.New(rand.NewPCG(1, 1)))
	f := extract.Fields{IPProto: 6, SrcPort: 80, DstPort: 1234}
	rec := testRecord()

	v1 := b.Build(f, rec, nil)
	v2 := b.Build(f, rec, nil)

	for i := 1; i < NumFeatures; i++ {
		require.Equal(t, v1[i], v2[i], "feature %d should be deterministic", i)
	}
}

func TestBuildUsesMinPort(t *testing.T) {
	b := NewBuilder(nil)
	f := extract.Fields{IPProto: 6, SrcPort: 9000, DstPort: 80}
	rec := testRecord()

	v := b.Build(f, rec, nil)
	require.Equal(t, uint16(6)<<8^uint16(80), v[1])
}

func TestMergeRejectsMismatchedRecords(t *testing.T) {
	b := NewBuilder(nil)
	f := extract.Fields{IPProto: 17, SrcPort: 1, DstPort: 2}
	rec := testRecord()

	blessed := b.Build(f, rec, nil)
	fresh := b.Build(f, rec, nil)

	_, err := Merge(blessed, 1, fresh, 2)
	require.Error(t, err)

	merged, err := Merge(blessed, 1, fresh, 1)
	require.NoError(t, err)
	require.Equal(t, fresh[1], merged[1])
}

func TestBurstStatsLast(t *testing.T) {
	bs := &BurstStats{}
	require.Equal(t, 0, bs.Last())
	bs.Counts = append(bs.Counts, 3, 7)
	require.Equal(t, 7, bs.Last())
}
