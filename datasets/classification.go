package datasets

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ClassificationConfig configures NewClassification. IDColumn and TargetColumn
// are required; everything else has a usable zero value.
type ClassificationConfig struct {
	// IDColumn names the table column holding the image identifier, usually a
	// file path or a path fragment.
	IDColumn string

	// TargetColumn names the table column holding the class label.
	TargetColumn string

	// Root, if set, is joined in front of every identifier. A leading "~" is
	// expanded to the user's home directory.
	Root string

	// Extension, if set, is appended to every identifier and must start with
	// a dot, e.g. ".png".
	Extension string

	// ClassToIndex optionally fixes the label-to-index mapping. When nil, the
	// mapping is derived by sorting the distinct target values. When set,
	// every target value in the table must be present in it.
	ClassToIndex map[string]int

	// Loader reads sample files. Defaults to DefaultLoader().
	Loader Loader

	// Transform optionally post-processes each loaded image.
	Transform SampleTransform

	// TargetTransform optionally builds the label tensor from the class
	// index. Defaults to a scalar int32 tensor.
	TargetTransform TargetTransform

	// DType of the sample tensor. Defaults to Uint8.
	DType dtypes.DType
}

// Classification is an indexable dataset of (image, class index) pairs built
// from a table with one row per labeled image.
//
// Exact duplicate rows, identical (resolved path, class index) pairs, are
// dropped at construction and the remaining samples re-indexed densely, so Len
// can be smaller than the row count of the table. Code deriving statistics
// from the raw table should use Labels instead.
type Classification struct {
	samples         []classSample
	classes         []string
	classToIdx      map[string]int
	loader          Loader
	transform       SampleTransform
	targetTransform TargetTransform
	toTensor        *timage.ToTensorConfig
}

type classSample struct {
	path  string
	class int32
}

var _ Indexed = (*Classification)(nil)

// NewClassification builds a Classification dataset from the given table.
// The table itself is only read during construction; images are loaded lazily
// on access.
func NewClassification(df dataframe.DataFrame, cfg ClassificationConfig) (*Classification, error) {
	if err := df.Error(); err != nil {
		return nil, errors.Wrap(err, "invalid table")
	}
	if err := checkColumns(df, cfg.IDColumn, cfg.TargetColumn); err != nil {
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

	// Drop exact duplicates, keeping first occurrence order.
	samples := make([]classSample, 0, len(paths))
	seen := make(map[classSample]bool, len(paths))
	for i := range paths {
		s := classSample{path: paths[i], class: classIndices[i]}
		if seen[s] {
			continue
		}
		seen[s] = true
		samples = append(samples, s)
	}

	loader := cfg.Loader
	if loader == nil {
		loader = DefaultLoader()
	}
	dtype := cfg.DType
	if dtype == dtypes.InvalidDType {
		dtype = dtypes.Uint8
	}

	klog.V(1).Infof("classification dataset: %d rows, %d samples after deduplication, %d classes",
		len(paths), len(samples), len(classToIdx))
	return &Classification{
		samples:         samples,
		classes:         classes,
		classToIdx:      classToIdx,
		loader:          loader,
		transform:       cfg.Transform,
		targetTransform: cfg.TargetTransform,
		toTensor:        timage.ToTensor(dtype),
	}, nil
}

// Len returns the number of samples after deduplication.
func (ds *Classification) Len() int { return len(ds.samples) }

// NumClasses returns the size of the class-to-index mapping.
func (ds *Classification) NumClasses() int { return len(ds.classToIdx) }

// Classes returns the distinct class labels observed in the table, sorted
// lexicographically.
func (ds *Classification) Classes() []string {
	return append([]string(nil), ds.classes...)
}

// ClassToIndex returns a copy of the label-to-index mapping in use.
func (ds *Classification) ClassToIndex() map[string]int {
	m := make(map[string]int, len(ds.classToIdx))
	for k, v := range ds.classToIdx {
		m[k] = v
	}
	return m
}

// Labels returns the class index of every sample, in dataset order. Useful
// for external samplers that need the label distribution, e.g. for stratified
// batching.
func (ds *Classification) Labels() []int32 {
	labels := make([]int32, len(ds.samples))
	for i, s := range ds.samples {
		labels[i] = s.class
	}
	return labels
}

// Paths returns the resolved file path of every sample, in dataset order.
func (ds *Classification) Paths() []string {
	paths := make([]string, len(ds.samples))
	for i, s := range ds.samples {
		paths[i] = s.path
	}
	return paths
}

// Example loads the sample at index and returns its image and label tensors.
// The image tensor is shaped [height, width, channels].
func (ds *Classification) Example(index int) (sample, label *tensors.Tensor, err error) {
	if index < 0 || index >= len(ds.samples) {
		return nil, nil, errors.Errorf("index %d out of range [0, %d)", index, len(ds.samples))
	}
	s := ds.samples[index]
	img, err := ds.loader.Load(s.path)
	if err != nil {
		return nil, nil, err
	}
	if ds.transform != nil {
		img, err = ds.transform.TransformSample(img)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "transform failed for %q", s.path)
		}
	}
	sample = ds.toTensor.Single(img)
	if ds.targetTransform != nil {
		label, err = ds.targetTransform.TransformTarget(s.class)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "target transform failed for class %d", s.class)
		}
	} else {
		label = tensors.FromScalar(s.class)
	}
	return sample, label, nil
}

// At implements Indexed.
func (ds *Classification) At(index int) (inputs, labels []*tensors.Tensor, err error) {
	sample, label, err := ds.Example(index)
	if err != nil {
		return nil, nil, err
	}
	return []*tensors.Tensor{sample}, []*tensors.Tensor{label}, nil
}
