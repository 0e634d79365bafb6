package datasets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// Shared table-preparation helpers: column checks, identifier-to-path
// resolution and class-to-index assignment. Both the classification and the
// detection datasets go through these at construction time.

// checkColumns verifies that every named column exists in the table.
func checkColumns(df dataframe.DataFrame, cols ...string) error {
	have := make(map[string]bool, len(df.Names()))
	for _, name := range df.Names() {
		have[name] = true
	}
	for _, col := range cols {
		if !have[col] {
			return errors.Errorf("column %q not found in table (columns: %v)", col, df.Names())
		}
	}
	return nil
}

// checkExtension enforces that an extension is either empty or carries the
// leading dot, e.g. ".png".
func checkExtension(ext string) error {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return errors.Errorf("extension %q must start with %q", ext, ".")
	}
	return nil
}

// expandTilde resolves a leading "~" in dir to the user's home directory.
func expandTilde(dir string) string {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, dir[1:])
		}
	}
	return dir
}

// resolvePaths turns identifier column values into file paths. With a root
// directory, each id becomes join(root, id+ext); with only an extension, the
// extension is appended; with neither, ids pass through unchanged.
func resolvePaths(ids []string, root, ext string) []string {
	if root == "" && ext == "" {
		return ids
	}
	root = expandTilde(root)
	paths := make([]string, len(ids))
	for i, id := range ids {
		if root != "" {
			paths[i] = filepath.Join(root, id+ext)
		} else {
			paths[i] = id + ext
		}
	}
	return paths
}

// buildClassIndex assigns a dense 0-based index to every distinct target
// value, in lexicographic order. Two tables with the same distinct target set
// always get the same assignment, independent of row order.
func buildClassIndex(targets []string) (classes []string, classToIdx map[string]int) {
	seen := make(map[string]bool)
	for _, t := range targets {
		if !seen[t] {
			seen[t] = true
			classes = append(classes, t)
		}
	}
	sort.Strings(classes)
	classToIdx = make(map[string]int, len(classes))
	for i, c := range classes {
		classToIdx[c] = i
	}
	return classes, classToIdx
}

// mapTargets converts target values to class indices. Every value must be
// present in the mapping; values missing from an externally supplied mapping
// are a construction error.
func mapTargets(targets []string, classToIdx map[string]int) ([]int32, error) {
	indices := make([]int32, len(targets))
	for i, t := range targets {
		idx, ok := classToIdx[t]
		if !ok {
			return nil, errors.Errorf("target value %q not present in the class-to-index mapping", t)
		}
		indices[i] = int32(idx)
	}
	return indices, nil
}

// distinctClasses returns the lexicographically sorted distinct target values.
func distinctClasses(targets []string) []string {
	classes, _ := buildClassIndex(targets)
	return classes
}
