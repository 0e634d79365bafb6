// Package datasets turns tabular sample metadata (one row per labeled image,
// or one row per bounding box) into datasets usable by gomlx training loops.
//
// The table is a gota dataframe.DataFrame: any CSV or in-memory record set with
// an identifier column (an image path, or a path fragment completed with a root
// directory and extension) and a target class column. Detection tables carry
// four extra columns encoding one bounding box per row as (x, y, width, height).
//
// Two layers are provided:
//
//   - Indexed datasets (Classification, Detection) support random access by
//     position and return single-example tensors. They load images lazily, one
//     file per access, so construction only touches the table.
//   - Streaming sources (BatchLoader, Chain) implement gomlx's train.Dataset:
//     Yield batches until io.EOF, Reset to start a new epoch. A BatchLoader
//     wraps an Indexed dataset into batches; a Chain merges several finite
//     sources into one stream, drawing uniformly at random among the sources
//     that still have data.
//
// Any parallel prefetching belongs to a wrapper around a Source (for example
// gomlx's parallel dataset utilities); nothing here spawns goroutines.
package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// Indexed is a dataset addressable by position. At returns the inputs and
// labels tensors of a single example.
//
// Implementations may drop duplicate table rows during construction, so Len
// can be smaller than the number of rows in the originating table.
type Indexed interface {
	Len() int
	At(index int) (inputs, labels []*tensors.Tensor, err error)
}

// Source is a finite stream with a declared length, as required by Chain.
// BatchLoader implements it; so does any train.Dataset with a Len method,
// such as Chain itself.
type Source interface {
	train.Dataset

	// Len declares how many Yield calls the source expects to serve before
	// returning io.EOF. It is informational and not validated against the
	// actual number of yields.
	Len() int
}
