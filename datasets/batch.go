package datasets

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// BatchLoader turns an Indexed dataset into a finite train.Dataset that
// yields fixed-size batches: every inputs/labels position is stacked across
// the batch into one tensor with a leading batch dimension.
//
// Examples within a batch must agree on tensor count and shapes. For
// detection data with varying box counts, bucket the table first with
// SplitByBoxCount so each loader serves a uniform shape.
type BatchLoader struct {
	ds             Indexed
	name           string
	batchSize      int
	dropIncomplete bool
	rng            *rand.Rand
	order          []int
	next           int
}

var _ Source = (*BatchLoader)(nil)

// NewBatchLoader wraps ds into batches of batchSize examples. A batchSize
// below 1 is treated as 1.
func NewBatchLoader(ds Indexed, batchSize int) *BatchLoader {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchLoader{
		ds:        ds,
		name:      fmt.Sprintf("BatchLoader(batch=%d)", batchSize),
		batchSize: batchSize,
	}
}

// Shuffle draws examples in a random order, reshuffled at every Reset. It
// returns the updated BatchLoader, so calls can be chained.
func (b *BatchLoader) Shuffle(rng *rand.Rand) *BatchLoader {
	b.rng = rng
	b.order = rng.Perm(b.ds.Len())
	return b
}

// DropIncomplete discards the trailing batch when the dataset size is not a
// multiple of the batch size. It returns the updated BatchLoader.
func (b *BatchLoader) DropIncomplete() *BatchLoader {
	b.dropIncomplete = true
	return b
}

// WithName sets the name reported by Name and returns the updated BatchLoader.
func (b *BatchLoader) WithName(name string) *BatchLoader {
	b.name = name
	return b
}

// Name implements train.Dataset.
func (b *BatchLoader) Name() string { return b.name }

// Len returns the number of batches served per epoch.
func (b *BatchLoader) Len() int {
	n := b.ds.Len()
	numBatches := n / b.batchSize
	if !b.dropIncomplete && n%b.batchSize != 0 {
		numBatches++
	}
	return numBatches
}

// Reset implements train.Dataset, rewinding to the start of a new epoch.
func (b *BatchLoader) Reset() {
	b.next = 0
	if b.rng != nil {
		b.order = b.rng.Perm(b.ds.Len())
	}
}

// Yield implements train.Dataset. It returns io.EOF once the epoch is
// exhausted; the spec is the BatchLoader itself.
func (b *BatchLoader) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	n := b.ds.Len()
	start := b.next
	if start >= n || (b.dropIncomplete && start+b.batchSize > n) {
		return nil, nil, nil, io.EOF
	}
	end := start + b.batchSize
	if end > n {
		end = n
	}
	b.next = end

	batchInputs := make([][]*tensors.Tensor, 0, end-start)
	batchLabels := make([][]*tensors.Tensor, 0, end-start)
	for i := start; i < end; i++ {
		idx := i
		if b.order != nil {
			idx = b.order[i]
		}
		exInputs, exLabels, err := b.ds.At(idx)
		if err != nil {
			return nil, nil, nil, err
		}
		batchInputs = append(batchInputs, exInputs)
		batchLabels = append(batchLabels, exLabels)
	}

	inputs, err = stackBatch(batchInputs)
	if err != nil {
		return nil, nil, nil, errors.WithMessage(err, "stacking batch inputs")
	}
	labels, err = stackBatch(batchLabels)
	if err != nil {
		return nil, nil, nil, errors.WithMessage(err, "stacking batch labels")
	}
	return b, inputs, labels, nil
}

// stackBatch stacks examples position-wise: element j of the result combines
// the j-th tensor of every example.
func stackBatch(examples [][]*tensors.Tensor) ([]*tensors.Tensor, error) {
	if len(examples) == 0 {
		return nil, nil
	}
	numPositions := len(examples[0])
	for i, ex := range examples {
		if len(ex) != numPositions {
			return nil, errors.Errorf("example 0 has %d tensors, example %d has %d", numPositions, i, len(ex))
		}
	}
	stacked := make([]*tensors.Tensor, numPositions)
	for j := 0; j < numPositions; j++ {
		parts := make([]*tensors.Tensor, len(examples))
		for i, ex := range examples {
			parts[i] = ex[j]
		}
		t, err := stackTensors(parts)
		if err != nil {
			return nil, errors.WithMessagef(err, "position %d", j)
		}
		stacked[j] = t
	}
	return stacked, nil
}

// stackTensors concatenates same-shaped tensors along a new leading axis.
// The copy is dtype-agnostic, going through the tensors' raw bytes.
func stackTensors(parts []*tensors.Tensor) (*tensors.Tensor, error) {
	ref := parts[0].Shape()
	for i, t := range parts[1:] {
		if !t.Shape().Equal(ref) {
			return nil, errors.Errorf("inconsistent shapes: example 0 has %s, example %d has %s",
				ref, i+1, t.Shape())
		}
	}
	dims := append([]int{len(parts)}, ref.Dimensions...)
	out := tensors.FromShape(shapes.Make(ref.DType, dims...))
	if ref.Size() == 0 {
		return out, nil
	}
	var copyErr error
	err := out.MutableBytes(func(dst []byte) {
		stride := len(dst) / len(parts)
		for i, t := range parts {
			offset := i * stride
			if err := t.ConstBytes(func(src []byte) {
				copy(dst[offset:offset+stride], src)
			}); err != nil && copyErr == nil {
				copyErr = err
			}
		}
	})
	if err == nil {
		err = copyErr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
