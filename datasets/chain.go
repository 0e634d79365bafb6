package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// ErrNotIndexable is returned by Chain.At: a chain is stream-only.
var ErrNotIndexable = errors.New("chain is stream-only and does not support indexed access")

// Chain merges several finite sources into one stream. Each Yield pulls from
// a source chosen uniformly at random among those that are still producing;
// a source that signals io.EOF leaves the draw, and the chain itself signals
// io.EOF once every source is exhausted.
//
// The draw is uniform over live sources, not over remaining items, so a
// source with more data left is not drained preferentially; it just stays
// eligible for longer.
//
// The source list is fixed at construction. Reset resets every source and
// restarts the stream from the full list. A Chain is driven by a single
// consumer; it holds no locks of its own.
type Chain struct {
	name    string
	sources []Source
	total   int
	rng     *rand.Rand
	live    []Source
	started bool
}

var _ train.Dataset = (*Chain)(nil)
var _ Source = (*Chain)(nil)
var _ Indexed = (*Chain)(nil)

// NewChain merges the given sources. The declared length is the sum of the
// sources' declared lengths, computed once here.
func NewChain(sources ...Source) *Chain {
	total := 0
	for _, s := range sources {
		total += s.Len()
	}
	return &Chain{
		name:    fmt.Sprintf("Chain(%d sources)", len(sources)),
		sources: sources,
		total:   total,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ChainIndexed wraps each Indexed dataset in a BatchLoader with the given
// batch size and merges the loaders.
func ChainIndexed(batchSize int, dss ...Indexed) *Chain {
	sources := make([]Source, len(dss))
	for i, ds := range dss {
		sources[i] = NewBatchLoader(ds, batchSize)
	}
	return NewChain(sources...)
}

// WithName sets the name reported by Name and returns the updated Chain.
func (c *Chain) WithName(name string) *Chain {
	c.name = name
	return c
}

// WithRand replaces the random generator used to pick sources, e.g. to make
// the interleaving reproducible. It returns the updated Chain.
func (c *Chain) WithRand(rng *rand.Rand) *Chain {
	c.rng = rng
	return c
}

// Name implements train.Dataset.
func (c *Chain) Name() string { return c.name }

// Len returns the sum of the declared lengths of all sources. It is not
// validated against the actual number of yields: a source declaring a wrong
// length skews Len but not the stream itself.
func (c *Chain) Len() int { return c.total }

// Reset implements train.Dataset. Every source is reset, so the next Yield
// starts a fresh pass over the full source list.
func (c *Chain) Reset() {
	for _, s := range c.sources {
		s.Reset()
	}
	c.live = nil
	c.started = false
}

// Yield implements train.Dataset, passing through the chosen source's spec,
// inputs and labels.
func (c *Chain) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if !c.started {
		c.started = true
		c.live = append([]Source(nil), c.sources...)
	}
	for len(c.live) > 0 {
		i := c.rng.Intn(len(c.live))
		spec, inputs, labels, err = c.live[i].Yield()
		if err == io.EOF {
			// Swap-with-last removal; order among live sources is not
			// an observable property of the stream.
			last := len(c.live) - 1
			c.live[i] = c.live[last]
			c.live[last] = nil
			c.live = c.live[:last]
			continue
		}
		return spec, inputs, labels, err
	}
	return nil, nil, nil, io.EOF
}

// At implements Indexed only to report that chains cannot be indexed; it
// always returns ErrNotIndexable.
func (c *Chain) At(int) (inputs, labels []*tensors.Tensor, err error) {
	return nil, nil, ErrNotIndexable
}
