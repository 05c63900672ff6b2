// Package batch drives the analysis across an experiment: it discovers
// tracking-result locations, runs the per-track lineage pipeline over each
// with a bounded worker pool, writes the per-location output tables and
// reports, and optionally mirrors rows into the results database.
package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// TrackingResultDirName is the directory name the external tracking step
// writes its CSV tables into, one per imaging location.
const TrackingResultDirName = "Tracking Result"

// Location is one discovered tracking-result directory.
type Location struct {
	// Dir is the directory holding the location's CSV tables.
	Dir string

	// Name is the display name used in logs and the results database.
	Name string
}

// displayName derives a location's display name from its directory: the
// parent of a "Tracking Result" folder, otherwise the folder itself, with a
// trailing "_cropped" suffix stripped.
func displayName(dir string) string {
	base := filepath.Base(dir)
	if base == TrackingResultDirName {
		base = filepath.Base(filepath.Dir(dir))
	}
	return strings.TrimSuffix(base, "_cropped")
}

// LocationForDir wraps a single directory as a location, for runs pointed at
// one folder instead of an experiment root.
func LocationForDir(dir string) Location {
	return Location{Dir: dir, Name: displayName(dir)}
}

// FindLocations walks root and returns every "Tracking Result" directory.
// WalkDir visits in lexical order, so the result is sorted and stable.
func FindLocations(root string) ([]Location, error) {
	var locs []Location
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || d.Name() != TrackingResultDirName {
			return nil
		}
		locs = append(locs, Location{Dir: path, Name: displayName(path)})
		// Nothing worth scanning below a result directory.
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return locs, nil
}
