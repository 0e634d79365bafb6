package datasets

import (
	"io"
	"math/rand"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

// seqSource is a Source yielding the int32 values base, base+1, ...,
// base+n-1, then io.EOF.
type seqSource struct {
	name string
	base int32
	n    int
	next int
}

func newSeqSource(name string, base int32, n int) *seqSource {
	return &seqSource{name: name, base: base, n: n}
}

func (s *seqSource) Name() string { return s.name }
func (s *seqSource) Len() int     { return s.n }
func (s *seqSource) Reset()       { s.next = 0 }

func (s *seqSource) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if s.next >= s.n {
		return nil, nil, nil, io.EOF
	}
	v := s.base + int32(s.next)
	s.next++
	return s, []*tensors.Tensor{tensors.FromScalar(v)}, nil, nil
}

// drain pulls the chain until io.EOF, returning every yielded value.
func drain(t *testing.T, c *Chain) []int32 {
	t.Helper()
	var got []int32
	for {
		_, inputs, _, err := c.Yield()
		if err == io.EOF {
			return got
		}
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		got = append(got, tensors.ToScalar[int32](inputs[0]))
	}
}

func TestChain_DrainsEverySource(t *testing.T) {
	c := NewChain(
		newSeqSource("a", 0, 3),
		newSeqSource("b", 100, 5),
		newSeqSource("c", 200, 0),
	).WithRand(rand.New(rand.NewSource(42)))

	require.Equal(t, 8, c.Len())

	// Every item of every source appears exactly once, over several epochs.
	for epoch := 0; epoch < 3; epoch++ {
		got := drain(t, c)
		require.Len(t, got, 8)
		counts := map[int32]int{}
		for _, v := range got {
			counts[v]++
		}
		for _, want := range []int32{0, 1, 2, 100, 101, 102, 103, 104} {
			require.Equal(t, 1, counts[want], "value %d in epoch %d", want, epoch)
		}
		c.Reset()
	}
}

func TestChain_SmallSourceStaysLive(t *testing.T) {
	// A 1-item source merged with a 1000-item source: the draw is uniform
	// over live sources, so the lone item is overwhelmingly unlikely to be
	// forced to the very end. With the removal of drained sources working,
	// both sources' items all show up regardless.
	c := NewChain(
		newSeqSource("small", 0, 1),
		newSeqSource("big", 1000, 1000),
	).WithRand(rand.New(rand.NewSource(7)))

	got := drain(t, c)
	require.Len(t, got, 1001)

	smallAt := -1
	for i, v := range got {
		if v == 0 {
			smallAt = i
		}
	}
	require.NotEqual(t, -1, smallAt, "small source never yielded")
	require.Less(t, smallAt, 100, "small source starved far beyond uniform odds")
}

func TestChain_LenIsStatic(t *testing.T) {
	c := NewChain(newSeqSource("a", 0, 4), newSeqSource("b", 10, 2))
	require.Equal(t, 6, c.Len())

	// Partially consuming the stream does not move Len.
	_, _, _, err := c.Yield()
	require.NoError(t, err)
	require.Equal(t, 6, c.Len())
}

func TestChain_AtIsNotSupported(t *testing.T) {
	c := NewChain(newSeqSource("a", 0, 2))
	_, _, err := c.At(0)
	require.ErrorIs(t, err, ErrNotIndexable)
	_, _, err = c.At(1)
	require.ErrorIs(t, err, ErrNotIndexable)
}

func TestChain_EmptyYieldsEOF(t *testing.T) {
	c := NewChain()
	require.Equal(t, 0, c.Len())
	_, _, _, err := c.Yield()
	require.ErrorIs(t, err, io.EOF)
}
