package capture

import (
	"context"
	"testing"
	"time"

	"flowlab.dev/flowlab/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestReplaySourceYieldsInOrder(t *testing.T) {
	now := time.Unix(0, 0)
	src := NewReplaySource([]Packet{
		{PortID: 1, Timestamp: now, Data: []byte{0x01}, CapturedLen: 1, WireLen: 1},
		{PortID: 1, Timestamp: now.Add(time.Microsecond), Data: []byte{0x02}, CapturedLen: 1, WireLen: 1},
	})

	p1, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, p1.Data)

	p2, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{0x02}, p2.Data)
}

func TestReplaySourceReturnsEndOfInputWhenExhausted(t *testing.T) {
	src := NewReplaySource([]Packet{{PortID: 1}})

	_, err := src.Next(context.Background())
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.Error(t, err)
	require.Equal(t, errors.EndOfInput, errors.GetKind(err))
}

func TestReplaySourceHonorsContextCancellation(t *testing.T) {
	src := NewReplaySource([]Packet{{PortID: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReplaySourceResetRewinds(t *testing.T) {
	src := NewReplaySource([]Packet{{PortID: 1}, {PortID: 2}})
	require.Equal(t, 2, src.Remaining())

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, src.Remaining())

	src.Reset()
	require.Equal(t, 2, src.Remaining())
}
