package datasets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Loader reads one sample file into an image. Implementations must return an
// error on any decode failure, never a silently empty image. Loaders wrap the
// underlying cause so callers can tell which file failed.
type Loader interface {
	Load(path string) (image.Image, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(path string) (image.Image, error)

func (f LoaderFunc) Load(path string) (image.Image, error) {
	return f(path)
}

// ImageLoader decodes standard image formats (JPEG, PNG) from disk. With Gray
// set, the decoded image is converted to grayscale before being returned.
type ImageLoader struct {
	Gray bool
}

func (l ImageLoader) Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load image file %q", path)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load image file %q", path)
	}
	if l.Gray {
		img = imaging.Grayscale(img)
	}
	return img, nil
}

// DICOMLoader decodes the first pixel-data frame of a DICOM file.
type DICOMLoader struct{}

func (DICOMLoader) Load(path string) (img image.Image, err error) {
	defer func() {
		// The dicom value accessors panic on malformed elements.
		if r := recover(); r != nil {
			img = nil
			err = errors.Errorf("cannot load dicom file %q: %v", path, r)
		}
	}()
	dcm, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load dicom file %q", path)
	}
	element, err := dcm.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load dicom file %q: no pixel data", path)
	}
	info := dicom.MustGetPixelDataInfo(element.Value)
	if len(info.Frames) == 0 {
		return nil, errors.Errorf("cannot load dicom file %q: pixel data holds no frames", path)
	}
	img, err = info.Frames[0].GetImage()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load dicom file %q", path)
	}
	return img, nil
}

// ExtensionLoader dispatches to a Loader keyed on the lower-cased file
// extension, falling back to a default for unknown extensions.
type ExtensionLoader struct {
	byExt    map[string]Loader
	fallback Loader
}

// NewExtensionLoader builds a dispatcher with the given fallback and no
// registered extensions.
func NewExtensionLoader(fallback Loader) *ExtensionLoader {
	return &ExtensionLoader{
		byExt:    make(map[string]Loader),
		fallback: fallback,
	}
}

// DefaultLoader routes ".dcm" files to the DICOM loader and everything else to
// a grayscale image loader.
func DefaultLoader() *ExtensionLoader {
	return &ExtensionLoader{
		byExt:    map[string]Loader{".dcm": DICOMLoader{}},
		fallback: ImageLoader{Gray: true},
	}
}

// WithLoader registers loader for the given extension (including the leading
// dot) and returns the updated ExtensionLoader, so calls can be chained.
func (l *ExtensionLoader) WithLoader(ext string, loader Loader) *ExtensionLoader {
	l.byExt[strings.ToLower(ext)] = loader
	return l
}

// WithFallback replaces the loader used for unregistered extensions.
func (l *ExtensionLoader) WithFallback(loader Loader) *ExtensionLoader {
	l.fallback = loader
	return l
}

func (l *ExtensionLoader) Load(path string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if loader, ok := l.byExt[ext]; ok {
		return loader.Load(path)
	}
	return l.fallback.Load(path)
}
