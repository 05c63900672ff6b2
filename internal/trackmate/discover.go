package trackmate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TableSet names the three CSV files of one location.
type TableSet struct {
	Dir        string
	Base       string
	SpotsPath  string
	EdgesPath  string
	TracksPath string
}

// FindTableSet locates a location's table files. The spots file matches
// *-all-spots.csv, falling back to *-spots.csv; the edges and tracks files
// share its base name. When several candidates exist the lexicographically
// first wins, so discovery is deterministic.
func FindTableSet(dir string) (TableSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return TableSet{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	var spots, suffix string
	for _, suf := range []string{"-all-spots.csv", "-spots.csv"} {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), suf) {
				continue
			}
			spots, suffix = e.Name(), suf
			break
		}
		if spots != "" {
			break
		}
	}
	if spots == "" {
		return TableSet{}, fmt.Errorf("no spots table (*-all-spots.csv or *-spots.csv) in %s", dir)
	}
	base := strings.TrimSuffix(spots, suffix)
	set := TableSet{
		Dir:        dir,
		Base:       base,
		SpotsPath:  filepath.Join(dir, spots),
		EdgesPath:  filepath.Join(dir, base+"-edges.csv"),
		TracksPath: filepath.Join(dir, base+"-tracks.csv"),
	}
	for _, p := range []string{set.EdgesPath, set.TracksPath} {
		if _, err := os.Stat(p); err != nil {
			return TableSet{}, fmt.Errorf("missing companion table %s", p)
		}
	}
	return set, nil
}
