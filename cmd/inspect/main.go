package main

// inspect summarizes a table-backed dataset from the command line: class
// distribution, box-count buckets for detection tables, an optional bar chart
// of the distribution, and an optional pass over every referenced file to
// verify it actually decodes.
//
// Usage:
//   inspect -csv train.csv -id image_id -target label -root data/train -ext .png
//   inspect -csv boxes.csv -id image_id -target label -bbox x,y,w,h -out output
//   inspect -csv train.csv -id image_id -target label -root data/train -verify

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/frameset/datasets"
	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/schollz/progressbar/v3"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	csvPath   = flag.String("csv", "", "path to the table CSV (required)")
	idCol     = flag.String("id", "image_id", "column holding the file identifier")
	targetCol = flag.String("target", "label", "column holding the class label")
	bboxCols  = flag.String("bbox", "", "comma-separated x,y,width,height columns; enables detection mode")
	root      = flag.String("root", "", "directory prepended to identifiers")
	ext       = flag.String("ext", "", "extension appended to identifiers, e.g. .png")
	outDir    = flag.String("out", "", "directory for the distribution chart; empty disables plotting")
	verify    = flag.Bool("verify", false, "decode every referenced file and report failures")
)

func main() {
	flag.Parse()
	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *csvPath, err)
	}
	df := dataframe.ReadCSV(f)
	f.Close()
	if err := df.Error(); err != nil {
		log.Fatalf("failed to parse %s: %v", *csvPath, err)
	}
	fmt.Printf("Table: %s rows, %d columns\n", humanize.Comma(int64(df.Nrow())), len(df.Names()))

	if *bboxCols != "" {
		inspectDetection(df)
		return
	}
	inspectClassification(df)
}

func inspectClassification(df dataframe.DataFrame) {
	ds, err := datasets.NewClassification(df, datasets.ClassificationConfig{
		IDColumn:     *idCol,
		TargetColumn: *targetCol,
		Root:         *root,
		Extension:    *ext,
	})
	if err != nil {
		log.Fatalf("failed to build classification dataset: %v", err)
	}

	fmt.Printf("Classification dataset: %s examples, %d classes\n",
		humanize.Comma(int64(ds.Len())), ds.NumClasses())

	// Per-class example counts, in class-index order.
	counts := make([]int, ds.NumClasses())
	for _, class := range ds.Labels() {
		counts[class]++
	}
	classes := ds.Classes()
	for i, class := range classes {
		fmt.Printf("  %3d  %-24s %s\n", i, class, humanize.Comma(int64(counts[i])))
	}

	if *outDir != "" {
		if err := plotDistribution(classes, counts, "Examples per class", "classes.png"); err != nil {
			log.Fatalf("failed to plot class distribution: %v", err)
		}
	}
	if *verify {
		verifyFiles(ds.Paths())
	}
}

func inspectDetection(df dataframe.DataFrame) {
	cols := strings.Split(*bboxCols, ",")
	cfg := datasets.DetectionConfig{
		IDColumn:     *idCol,
		TargetColumn: *targetCol,
		BBoxColumns:  cols,
		Root:         *root,
		Extension:    *ext,
	}
	buckets, err := datasets.SplitByBoxCount(df, cfg)
	if err != nil {
		log.Fatalf("failed to build detection buckets: %v", err)
	}
	if len(buckets) == 0 {
		log.Fatalf("table has no rows; nothing to inspect")
	}

	totalImages := 0
	var names []string
	var sizes []int
	var paths []string
	for _, bucket := range buckets {
		totalImages += bucket.Len()
		names = append(names, fmt.Sprintf("%d boxes", bucket.BoxCount(0)))
		sizes = append(sizes, bucket.Len())
		paths = append(paths, bucket.Paths()...)
	}
	fmt.Printf("Detection dataset: %s images, %d classes, %d box-count buckets\n",
		humanize.Comma(int64(totalImages)), buckets[0].NumClasses(), len(buckets))
	for i, bucket := range buckets {
		fmt.Printf("  %-12s %s images\n", names[i], humanize.Comma(int64(bucket.Len())))
	}

	if *outDir != "" {
		if err := plotDistribution(names, sizes, "Images per box count", "buckets.png"); err != nil {
			log.Fatalf("failed to plot bucket distribution: %v", err)
		}
	}
	if *verify {
		verifyFiles(paths)
	}
}

// plotDistribution renders a bar chart of counts labeled by names into outDir.
func plotDistribution(names []string, counts []int, title, filename string) error {
	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "count"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	outPath := filepath.Join(*outDir, filename)
	if err := p.Save(8*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", outPath)
	return nil
}

// verifyFiles decodes every path with the default loader and reports failures.
func verifyFiles(paths []string) {
	loader := datasets.DefaultLoader()
	bar := progressbar.Default(int64(len(paths)), "verifying")
	failed := 0
	for _, path := range paths {
		if _, err := loader.Load(path); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	if failed > 0 {
		log.Fatalf("%d of %d files failed to decode", failed, len(paths))
	}
	fmt.Printf("All %s files decoded cleanly\n", humanize.Comma(int64(len(paths))))
}
