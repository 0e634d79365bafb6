package datasets

import (
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var detectionHeader = []string{"image", "label", "x", "y", "w", "h"}

// detectionTable builds a detection table and writes one PNG per distinct
// image id under a fresh temp dir.
func detectionTable(t *testing.T, rows [][]string) (string, dataframe.DataFrame) {
	t.Helper()
	tmp := t.TempDir()
	records := append([][]string{detectionHeader}, rows...)
	seen := map[string]bool{}
	for _, row := range rows {
		if !seen[row[0]] {
			seen[row[0]] = true
			writePNG(t, filepath.Join(tmp, row[0]+".png"), 4, 4)
		}
	}
	return tmp, dataframe.LoadRecords(records)
}

func detectionConfig(tmp string) DetectionConfig {
	return DetectionConfig{
		IDColumn:     "image",
		TargetColumn: "label",
		BBoxColumns:  []string{"x", "y", "w", "h"},
		Root:         tmp,
		Extension:    ".png",
		Loader:       ImageLoader{},
	}
}

func TestDetection_BoxCornerConversion(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "10", "20", "5", "8"},
	})
	ds, err := NewDetection(df, detectionConfig(tmp))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	sample, err := ds.Example(0)
	require.NoError(t, err)
	require.Equal(t, []int{4, 4, 3}, sample.Image.Shape().Dimensions)
	require.Equal(t, []int{1}, sample.Labels.Shape().Dimensions)
	require.Equal(t, []int{1, 4}, sample.Boxes.Shape().Dimensions)
	require.Equal(t, []float32{10, 20, 15, 28}, tensors.MustCopyFlatData[float32](sample.Boxes))
}

func TestDetection_RowsGroupByID(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "1", "1", "2", "2"},
		{"img1", "cat", "3", "3", "2", "2"},
		{"img0", "cat", "5", "5", "2", "2"},
	})
	ds, err := NewDetection(df, detectionConfig(tmp))
	require.NoError(t, err)

	require.Equal(t, 2, ds.Len())
	require.Equal(t, 2, ds.BoxCount(0))
	require.Equal(t, 1, ds.BoxCount(1))

	sample, err := ds.Example(0)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, sample.Boxes.Shape().Dimensions)
	// Classes sort lexicographically: cat=0, dog=1. Rows keep table order.
	require.Equal(t, []int32{1, 0}, tensors.MustCopyFlatData[int32](sample.Labels))
}

func TestDetection_NaNDropsWholeBoxSet(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "1", "1", "2", "2"},
		{"img0", "cat", "NaN", "3", "2", "2"},
	})
	ds, err := NewDetection(df, detectionConfig(tmp))
	require.NoError(t, err)

	sample, err := ds.Example(0)
	require.NoError(t, err)
	// One bad coordinate invalidates both boxes; labels survive.
	require.Equal(t, []int{2}, sample.Labels.Shape().Dimensions)
	require.Equal(t, []int{2, 0, 4}, sample.Boxes.Shape().Dimensions)
}

func TestDetection_TransformCanDropBoxes(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "1", "1", "2", "2"},
		{"img0", "cat", "3", "3", "2", "2"},
	})
	cfg := detectionConfig(tmp)
	cfg.Transform = DetectionTransformFunc(func(ex *DetectionExample) (*DetectionExample, error) {
		ex.Boxes = nil
		return ex, nil
	})
	ds, err := NewDetection(df, cfg)
	require.NoError(t, err)

	sample, err := ds.Example(0)
	require.NoError(t, err)
	require.Equal(t, []int{2, 0, 4}, sample.Boxes.Shape().Dimensions)
}

func TestDetection_At(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "1", "1", "2", "2"},
	})
	ds, err := NewDetection(df, detectionConfig(tmp))
	require.NoError(t, err)

	inputs, labels, err := ds.At(0)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, labels, 2) // class indices, then boxes
}

func TestDetection_RequiresFourBBoxColumns(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "1", "1", "2", "2"},
	})
	cfg := detectionConfig(tmp)
	cfg.BBoxColumns = []string{"x", "y", "w"}
	_, err := NewDetection(df, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 4 bbox columns")
}

func TestSplitByBoxCount(t *testing.T) {
	// Box counts per image: a=1, b=1, c=2, d=3, e=3, f=3.
	var rows [][]string
	addBoxes := func(id string, n int) {
		for i := 0; i < n; i++ {
			rows = append(rows, []string{id, "dog", "1", "1", "2", "2"})
		}
	}
	addBoxes("a", 1)
	addBoxes("b", 1)
	addBoxes("c", 2)
	addBoxes("d", 3)
	addBoxes("e", 3)
	addBoxes("f", 3)

	tmp, df := detectionTable(t, rows)
	buckets, err := SplitByBoxCount(df, detectionConfig(tmp))
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	// Buckets appear in first-seen order of counts: 1, 2, 3.
	require.Equal(t, 2, buckets[0].Len())
	require.Equal(t, 1, buckets[1].Len())
	require.Equal(t, 3, buckets[2].Len())

	// Every table row lands in exactly one bucket.
	totalRows := 0
	for _, bucket := range buckets {
		for i := 0; i < bucket.Len(); i++ {
			totalRows += bucket.BoxCount(i)
		}
	}
	require.Equal(t, len(rows), totalRows)
}

func TestSplitByBoxCount_EmptyTable(t *testing.T) {
	tmp, df := detectionTable(t, [][]string{
		{"img0", "dog", "1", "1", "2", "2"},
	})
	empty := df.Subset([]int{})
	require.NoError(t, empty.Error())

	// A rowless table produces no buckets; callers must handle the empty
	// result rather than assume at least one dataset.
	buckets, err := SplitByBoxCount(empty, detectionConfig(tmp))
	require.NoError(t, err)
	require.Empty(t, buckets)
}
