package datasets

import (
	"image"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// SampleTransform post-processes a loaded image before it is converted to a
// tensor, e.g. resizing or augmentation built on the imaging package. A nil
// transform leaves the image untouched.
type SampleTransform interface {
	TransformSample(img image.Image) (image.Image, error)
}

// SampleTransformFunc adapts a plain function to SampleTransform.
type SampleTransformFunc func(img image.Image) (image.Image, error)

func (f SampleTransformFunc) TransformSample(img image.Image) (image.Image, error) {
	return f(img)
}

// TargetTransform converts a class index into the label tensor. A nil
// transform yields the class index as a scalar int32 tensor.
type TargetTransform interface {
	TransformTarget(class int32) (*tensors.Tensor, error)
}

// TargetTransformFunc adapts a plain function to TargetTransform.
type TargetTransformFunc func(class int32) (*tensors.Tensor, error)

func (f TargetTransformFunc) TransformTarget(class int32) (*tensors.Tensor, error) {
	return f(class)
}

// DetectionExample is one detection sample before tensor conversion: the
// image, its bounding boxes as (x0, y0, x1, y1) corner pairs and the class
// index of each box. Boxes and Labels run in parallel while both are present;
// a transform is free to return fewer (or zero) boxes than labels, e.g. after
// cropping away every box.
type DetectionExample struct {
	Image  image.Image
	Boxes  [][]float32
	Labels []int32
}

// DetectionTransform maps a whole detection example, so image and geometry
// changes stay consistent. Combining image-level and box-level operations is
// the transform's responsibility. A nil transform is the identity.
type DetectionTransform interface {
	TransformDetection(ex *DetectionExample) (*DetectionExample, error)
}

// DetectionTransformFunc adapts a plain function to DetectionTransform.
type DetectionTransformFunc func(ex *DetectionExample) (*DetectionExample, error)

func (f DetectionTransformFunc) TransformDetection(ex *DetectionExample) (*DetectionExample, error) {
	return f(ex)
}
