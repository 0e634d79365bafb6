package main

// Example command demonstrating the table-backed datasets: a classification
// dataset, a detection dataset split into same-box-count buckets, and a
// randomized chain merging the buckets into a single training stream.
//
// The datasets load lazily - construction only reads the table, and image
// files are decoded when an example is requested.
//
// Usage:
//   go run ./example
//
// The example is self-contained: it synthesizes a handful of PNG files into a
// temporary directory so it can run without any external data.

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/Noofbiz/frameset/datasets"
	"github.com/go-gota/gota/dataframe"
)

func writeImage(dir, name string, side int) error {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 200, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func main() {
	dir, err := os.MkdirTemp("", "frameset-example")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	for _, name := range []string{"img0.png", "img1.png", "img2.png", "img3.png"} {
		if err := writeImage(dir, name, 8); err != nil {
			log.Fatalf("failed to write %s: %v", name, err)
		}
	}

	// Classification: one row per example, (file id, class label).
	clsTable := dataframe.LoadRecords([][]string{
		{"file", "label"},
		{"img0", "dog"},
		{"img1", "cat"},
		{"img2", "dog"},
		{"img3", "bird"},
	})
	clsDS, err := datasets.NewClassification(clsTable, datasets.ClassificationConfig{
		IDColumn:     "file",
		TargetColumn: "label",
		Root:         dir,
		Extension:    ".png",
		Loader:       datasets.ImageLoader{},
	})
	if err != nil {
		log.Fatalf("failed to build classification dataset: %v", err)
	}
	fmt.Printf("Classification dataset: %d examples, %d classes\n", clsDS.Len(), clsDS.NumClasses())
	fmt.Printf("  Class index (lexicographic): %v\n", clsDS.ClassToIndex())

	sample, label, err := clsDS.Example(0)
	if err != nil {
		log.Fatalf("failed to load example 0: %v", err)
	}
	fmt.Printf("  Example 0: sample shape %v, label %v\n", sample.Shape().Dimensions, label.Value())

	fmt.Println()

	// Detection: one row per bounding box, several rows per image.
	detTable := dataframe.LoadRecords([][]string{
		{"image", "label", "x", "y", "w", "h"},
		{"img0", "dog", "1", "1", "3", "3"},
		{"img1", "cat", "2", "2", "2", "2"},
		{"img1", "dog", "4", "4", "2", "2"},
		{"img2", "cat", "0", "0", "5", "5"},
		{"img3", "bird", "3", "1", "2", "4"},
		{"img3", "bird", "1", "3", "4", "2"},
	})
	cfg := datasets.DetectionConfig{
		IDColumn:     "image",
		TargetColumn: "label",
		BBoxColumns:  []string{"x", "y", "w", "h"},
		Root:         dir,
		Extension:    ".png",
		Loader:       datasets.ImageLoader{},
	}

	// Bucket images by box count so every bucket serves a uniform shape.
	buckets, err := datasets.SplitByBoxCount(detTable, cfg)
	if err != nil {
		log.Fatalf("failed to split detection table: %v", err)
	}
	fmt.Printf("Detection table split into %d buckets:\n", len(buckets))
	for i, bucket := range buckets {
		fmt.Printf("  Bucket %d: %d images, %d boxes each\n", i, bucket.Len(), bucket.BoxCount(0))
	}

	det, err := buckets[0].Example(0)
	if err != nil {
		log.Fatalf("failed to load detection example: %v", err)
	}
	fmt.Printf("  First example: image %v, labels %v, boxes %v\n",
		det.Image.Shape().Dimensions, det.Labels.Value(), det.Boxes.Value())

	fmt.Println()

	// Chain the buckets into one stream: every Yield draws uniformly among the
	// buckets that still have batches left.
	chain := datasets.ChainIndexed(1, buckets[0], buckets[1])
	fmt.Printf("Chained stream %q declares %d batches\n", chain.Name(), chain.Len())
	yields := 0
	for {
		_, inputs, labels, err := chain.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("chain yield failed: %v", err)
		}
		fmt.Printf("  Batch %d: image %v, labels %v\n",
			yields, inputs[0].Shape().Dimensions, labels[0].Value())
		yields++
	}
	fmt.Printf("Stream exhausted after %d batches\n", yields)

	fmt.Println("\nExample completed successfully!")
	fmt.Println("Note: images were decoded lazily, only when an example was requested.")
}
