package datasets

import (
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DetectionConfig configures NewDetection. IDColumn, TargetColumn and the four
// BBoxColumns are required.
type DetectionConfig struct {
	// IDColumn names the table column holding the image identifier. Several
	// rows may share one identifier, each contributing one bounding box.
	IDColumn string

	// TargetColumn names the table column holding the class label of each box.
	TargetColumn string

	// BBoxColumns name the four columns encoding each row's box as
	// (x, y, width, height), in that order.
	BBoxColumns []string

	// Root and Extension compose identifiers into file paths, as in
	// ClassificationConfig.
	Root      string
	Extension string

	// ClassToIndex optionally fixes the label-to-index mapping, as in
	// ClassificationConfig.
	ClassToIndex map[string]int

	// Loader reads sample files. Defaults to DefaultLoader().
	Loader Loader

	// Transform optionally maps the whole {image, boxes, labels} example.
	Transform DetectionTransform

	// DType of the image tensor. Defaults to Uint8.
	DType dtypes.DType
}

// DetectionSample is one detection example in tensor form: the image shaped
// [height, width, channels], the per-box class indices shaped [n] (int32) and
// the boxes as (x0, y0, x1, y1) corners shaped [n, 4] (float32).
//
// When no boxes survive, Boxes is shaped [n, 0, 4]: one empty placeholder per
// label, so the label count is preserved. Consumers must treat any sample
// whose boxes tensor has a zero dimension as "no boxes" rather than reading N
// degenerate boxes out of its leading dimension.
type DetectionSample struct {
	Image  *tensors.Tensor
	Labels *tensors.Tensor
	Boxes  *tensors.Tensor
}

// Detection is an indexable dataset built from a table with one row per
// bounding box. Rows sharing an identifier form one example; indexing is by
// distinct identifier in first-seen table order, not by row.
//
// Unlike Classification, rows are never deduplicated: two identical rows are
// two distinct box observations.
//
// Box sets containing any NaN coordinate are dropped wholesale: one bad row
// invalidates every box of its image, and the example is produced with zero
// boxes. This is data cleaning, not an error.
type Detection struct {
	ids        []string
	groups     map[string][]int
	rows       []detectionRow
	classes    []string
	classToIdx map[string]int
	loader     Loader
	transform  DetectionTransform
	toTensor   *timage.ToTensorConfig
}

type detectionRow struct {
	class      int32
	x, y, w, h float32
}

var _ Indexed = (*Detection)(nil)

// NewDetection builds a Detection dataset from the given table. The table is
// only read during construction; images are loaded lazily on access.
func NewDetection(df dataframe.DataFrame, cfg DetectionConfig) (*Detection, error) {
	if err := df.Error(); err != nil {
		return nil, errors.Wrap(err, "invalid table")
	}
	if len(cfg.BBoxColumns) != 4 {
		return nil, errors.Errorf("expected exactly 4 bbox columns (x, y, width, height), got %d", len(cfg.BBoxColumns))
	}
	cols := append([]string{cfg.IDColumn, cfg.TargetColumn}, cfg.BBoxColumns...)
	if err := checkColumns(df, cols...); err != nil {
		return nil, err
	}
	if err := checkExtension(cfg.Extension); err != nil {
		return nil, err
	}

	targets := df.Col(cfg.TargetColumn).Records()
	paths := resolvePaths(df.Col(cfg.IDColumn).Records(), cfg.Root, cfg.Extension)

	classes := distinctClasses(targets)
	classToIdx := cfg.ClassToIndex
	if classToIdx == nil {
		_, classToIdx = buildClassIndex(targets)
	}
	classIndices, err := mapTargets(targets, classToIdx)
	if err != nil {
		return nil, err
	}

	// Box coordinates; unparseable cells become NaN and poison their group.
	var coords [4][]float64
	for i, col := range cfg.BBoxColumns {
		coords[i] = df.Col(col).Float()
	}
	rows := make([]detectionRow, len(paths))
	for i := range paths {
		rows[i] = detectionRow{
			class: classIndices[i],
			x:     float32(coords[0][i]),
			y:     float32(coords[1][i]),
			w:     float32(coords[2][i]),
			h:     float32(coords[3][i]),
		}
	}

	// Distinct ids in first-seen order; each keeps its row indices.
	var ids []string
	groups := make(map[string][]int)
	for i, p := range paths {
		if _, ok := groups[p]; !ok {
			ids = append(ids, p)
		}
		groups[p] = append(groups[p], i)
	}

	loader := cfg.Loader
	if loader == nil {
		loader = DefaultLoader()
	}
	dtype := cfg.DType
	if dtype == dtypes.InvalidDType {
		dtype = dtypes.Uint8
	}

	klog.V(1).Infof("detection dataset: %d rows, %d images, %d classes",
		len(rows), len(ids), len(classToIdx))
	return &Detection{
		ids:        ids,
		groups:     groups,
		rows:       rows,
		classes:    classes,
		classToIdx: classToIdx,
		loader:     loader,
		transform:  cfg.Transform,
		toTensor:   timage.ToTensor(dtype),
	}, nil
}

// Len returns the number of distinct image identifiers.
func (ds *Detection) Len() int { return len(ds.ids) }

// NumClasses returns the size of the class-to-index mapping.
func (ds *Detection) NumClasses() int { return len(ds.classToIdx) }

// Classes returns the distinct class labels observed in the table, sorted
// lexicographically.
func (ds *Detection) Classes() []string {
	return append([]string(nil), ds.classes...)
}

// ClassToIndex returns a copy of the label-to-index mapping in use.
func (ds *Detection) ClassToIndex() map[string]int {
	m := make(map[string]int, len(ds.classToIdx))
	for k, v := range ds.classToIdx {
		m[k] = v
	}
	return m
}

// Paths returns the resolved path of every distinct image, in dataset order.
func (ds *Detection) Paths() []string {
	return append([]string(nil), ds.ids...)
}

// BoxCount returns how many rows (boxes) the image at index has.
func (ds *Detection) BoxCount(index int) int {
	if index < 0 || index >= len(ds.ids) {
		return 0
	}
	return len(ds.groups[ds.ids[index]])
}

// Example loads the image at index and assembles its detection sample: box
// encoding is converted from (x, y, width, height) to (x0, y0, x0+w, y0+h)
// corners, NaN-poisoned box sets are dropped, and the configured transform, if
// any, is applied before tensor conversion.
func (ds *Detection) Example(index int) (*DetectionSample, error) {
	if index < 0 || index >= len(ds.ids) {
		return nil, errors.Errorf("index %d out of range [0, %d)", index, len(ds.ids))
	}
	id := ds.ids[index]
	img, err := ds.loader.Load(id)
	if err != nil {
		return nil, err
	}

	rowIndices := ds.groups[id]
	ex := &DetectionExample{
		Image:  img,
		Boxes:  make([][]float32, 0, len(rowIndices)),
		Labels: make([]int32, 0, len(rowIndices)),
	}
	poisoned := false
	for _, ri := range rowIndices {
		r := ds.rows[ri]
		ex.Labels = append(ex.Labels, r.class)
		box := []float32{r.x, r.y, r.x + r.w, r.y + r.h}
		for _, v := range box {
			if math.IsNaN(float64(v)) {
				poisoned = true
			}
		}
		ex.Boxes = append(ex.Boxes, box)
	}
	if poisoned {
		ex.Boxes = nil
	}

	if ds.transform != nil {
		ex, err = ds.transform.TransformDetection(ex)
		if err != nil {
			return nil, errors.Wrapf(err, "transform failed for %q", id)
		}
	}

	var labels *tensors.Tensor
	if len(ex.Labels) == 0 {
		labels = tensors.FromShape(shapes.Make(dtypes.Int32, 0))
	} else {
		labels = tensors.FromValue(ex.Labels)
	}
	var boxes *tensors.Tensor
	if len(ex.Boxes) == 0 {
		boxes = tensors.FromShape(shapes.Make(dtypes.Float32, len(ex.Labels), 0, 4))
	} else {
		flat := make([]float32, 0, len(ex.Boxes)*4)
		for _, box := range ex.Boxes {
			if len(box) != 4 {
				return nil, errors.Errorf("transform produced a box with %d coordinates, want 4", len(box))
			}
			flat = append(flat, box...)
		}
		boxes = tensors.FromFlatDataAndDimensions(flat, len(ex.Boxes), 4)
	}
	return &DetectionSample{
		Image:  ds.toTensor.Single(ex.Image),
		Labels: labels,
		Boxes:  boxes,
	}, nil
}

// At implements Indexed. Labels are returned as two tensors: the class
// indices and the boxes.
func (ds *Detection) At(index int) (inputs, labels []*tensors.Tensor, err error) {
	sample, err := ds.Example(index)
	if err != nil {
		return nil, nil, err
	}
	return []*tensors.Tensor{sample.Image}, []*tensors.Tensor{sample.Labels, sample.Boxes}, nil
}

// SplitByBoxCount partitions the table by how many rows (boxes) each image
// identifier has and builds one Detection dataset per distinct count, in
// first-seen order of the counts. Every table row lands in exactly one of the
// returned datasets.
//
// Batch assembly often needs a uniform box count per batch; bucketing by count
// lets an external sampler draw same-shape batches from one bucket cheaply.
func SplitByBoxCount(df dataframe.DataFrame, cfg DetectionConfig) ([]*Detection, error) {
	if err := df.Error(); err != nil {
		return nil, errors.Wrap(err, "invalid table")
	}
	if err := checkColumns(df, cfg.IDColumn); err != nil {
		return nil, err
	}
	ids := df.Col(cfg.IDColumn).Records()
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	var countOrder []int
	seenCount := make(map[int]bool)
	for _, id := range ids {
		if c := counts[id]; !seenCount[c] {
			seenCount[c] = true
			countOrder = append(countOrder, c)
		}
	}

	result := make([]*Detection, 0, len(countOrder))
	for _, c := range countOrder {
		var rowIndices []int
		for i, id := range ids {
			if counts[id] == c {
				rowIndices = append(rowIndices, i)
			}
		}
		bucket := df.Subset(rowIndices)
		if err := bucket.Error(); err != nil {
			return nil, errors.Wrapf(err, "failed to select rows with %d boxes per image", c)
		}
		ds, err := NewDetection(bucket, cfg)
		if err != nil {
			return nil, errors.WithMessagef(err, "bucket with %d boxes per image", c)
		}
		result = append(result, ds)
	}
	return result, nil
}
