package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lineage-data/motility.report/internal/lineage"
	"github.com/lineage-data/motility.report/internal/trackmate"
)

// dividedTrack analyzes a small track with one division: a two-spot trunk,
// a two-spot daughter, and a single-spot daughter whose speed statistics are
// all undefined.
func dividedTrack(t *testing.T, trackID int64) *lineage.TrackResult {
	t.Helper()
	spot := func(id int64, frame int, x, y float64) trackmate.Spot {
		return trackmate.Spot{
			ID: id, TrackID: trackID, Frame: frame, X: x, Y: y,
			Quality: math.NaN(), Radius: math.NaN(), Area: math.NaN(),
			MeanIntensity: []float64{float64(id) * 10},
		}
	}
	edge := func(src, tgt int64) trackmate.Edge {
		return trackmate.Edge{
			TrackID: trackID, SourceID: src, TargetID: tgt,
			Displacement: math.NaN(), Speed: math.NaN(),
			DirectionalChangeRate: math.NaN(), EdgeTime: math.NaN(),
		}
	}
	spots := []trackmate.Spot{
		spot(1, 0, 0, 0),
		spot(2, 1, 1, 0),
		spot(3, 2, 2, 0),
		spot(4, 2, 1, 1),
		spot(5, 3, 3, 0),
	}
	edges := []trackmate.Edge{
		edge(1, 2),
		edge(2, 3), edge(2, 4),
		edge(3, 5),
	}
	res, err := lineage.AnalyzeTrack(trackID, spots, edges)
	if err != nil {
		t.Fatalf("AnalyzeTrack: %v", err)
	}
	return res
}

func TestStatsHeader(t *testing.T) {
	header := StatsHeader(2)
	if got, want := len(header), 35; got != want {
		t.Fatalf("header width = %d, want %d", got, want)
	}
	if header[0] != "SUBTRACK_ID" {
		t.Errorf("first column = %q", header[0])
	}
	if header[33] != "MEAN_INTENSITY_CH1" || header[34] != "MEAN_INTENSITY_CH2" {
		t.Errorf("intensity columns = %q, %q", header[33], header[34])
	}
	if len(StatsHeader(0)) != 33 {
		t.Errorf("zero-channel header width = %d", len(StatsHeader(0)))
	}
}

func TestCSVWriter_WriteTrack(t *testing.T) {
	var stats, edges, lin bytes.Buffer
	w := NewCSVWriter(&stats, &edges, &lin)

	res := dividedTrack(t, 7)
	w.WriteHeaders(1)
	w.WriteTrack(res, 1)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	statsRows := parseCSV(t, stats.String())
	if len(statsRows) != 4 {
		t.Fatalf("stats rows = %d, want header + 3", len(statsRows))
	}
	if statsRows[1][0] != "Track_7_Sub_1" || statsRows[3][0] != "Track_7_Sub_3" {
		t.Errorf("subtrack ids = %q, %q", statsRows[1][0], statsRows[3][0])
	}

	// The single-spot daughter has no edges: its five speed columns are
	// empty, its quality falls back to zero.
	header := statsRows[0]
	last := statsRows[3]
	for _, col := range []string{"SUBTRACK_MEAN_SPEED", "SUBTRACK_MIN_SPEED", "SUBTRACK_MAX_SPEED", "SUBTRACK_MEDIAN_SPEED", "SUBTRACK_STD_SPEED", "TORTUOSITY"} {
		if v := cellAt(t, header, last, col); v != "" {
			t.Errorf("%s = %q, want empty", col, v)
		}
	}
	if v := cellAt(t, header, last, "MEAN_QUALITY"); v != "0.000000" {
		t.Errorf("MEAN_QUALITY = %q", v)
	}
	if v := cellAt(t, header, last, "MEAN_INTENSITY_CH1"); v != "40.000000" {
		t.Errorf("MEAN_INTENSITY_CH1 = %q", v)
	}

	// Edges relation: one trunk chain edge, then each daughter's division
	// edge before its chain edges.
	edgeRows := parseCSV(t, edges.String())
	if len(edgeRows) != 5 {
		t.Fatalf("edge rows = %d, want header + 4", len(edgeRows))
	}
	wantOwners := []string{"Track_7_Sub_1", "Track_7_Sub_2", "Track_7_Sub_2", "Track_7_Sub_3"}
	wantTargets := []string{"2", "3", "5", "4"}
	for i, row := range edgeRows[1:] {
		if row[0] != wantOwners[i] {
			t.Errorf("edge %d owner = %q, want %q", i, row[0], wantOwners[i])
		}
		if row[3] != wantTargets[i] {
			t.Errorf("edge %d target = %q, want %q", i, row[3], wantTargets[i])
		}
	}
	// Division edge into Sub_2 runs from the trunk's closing frame.
	if edgeRows[2][4] != "1" || edgeRows[2][5] != "2" {
		t.Errorf("division edge frames = %q -> %q", edgeRows[2][4], edgeRows[2][5])
	}

	linRows := parseCSV(t, lin.String())
	if len(linRows) != 4 {
		t.Fatalf("lineage rows = %d, want header + 3", len(linRows))
	}
	root := linRows[1]
	if root[3] != "" || root[5] != "" {
		t.Errorf("root parent/split = %q, %q, want empty", root[3], root[5])
	}
	if linRows[2][3] != "Track_7_Sub_1" || linRows[2][5] != "1" {
		t.Errorf("daughter parent/split = %q, %q", linRows[2][3], linRows[2][5])
	}
	if linRows[3][10] != "1/3" {
		t.Errorf("path = %q, want 1/3", linRows[3][10])
	}
}

func TestWriteLocationTables(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, "secondary_analysis")
	results := []*lineage.TrackResult{dividedTrack(t, 1), dividedTrack(t, 2)}

	paths, err := WriteLocationTables(folder, "exp01", results, 1)
	if err != nil {
		t.Fatalf("WriteLocationTables: %v", err)
	}
	if filepath.Base(paths.Stats) != "exp01-subtrack_statistics.csv" {
		t.Errorf("stats path = %q", paths.Stats)
	}

	rows := parseCSV(t, readFile(t, paths.Stats))
	if len(rows) != 7 {
		t.Fatalf("stats rows = %d, want header + 6", len(rows))
	}
	gotTracks := make([]string, 0, 6)
	for _, row := range rows[1:] {
		gotTracks = append(gotTracks, row[1])
	}
	want := []string{"1", "1", "1", "2", "2", "2"}
	for i := range want {
		if gotTracks[i] != want[i] {
			t.Fatalf("track order = %v, want %v", gotTracks, want)
		}
	}
}

func TestWriteLocationTablesEmpty(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "secondary_analysis")

	paths, err := WriteLocationTables(folder, "exp01", nil, 3)
	if err != nil {
		t.Fatalf("WriteLocationTables: %v", err)
	}
	for _, p := range []string{paths.Stats, paths.Edges, paths.Lineage} {
		rows := parseCSV(t, readFile(t, p))
		if len(rows) != 1 {
			t.Errorf("%s rows = %d, want header only", filepath.Base(p), len(rows))
		}
	}
	rows := parseCSV(t, readFile(t, paths.Stats))
	if got := rows[0][len(rows[0])-1]; got != "MEAN_INTENSITY_CH3" {
		t.Errorf("last stats column = %q", got)
	}
}

func TestWriteLocationTablesIdempotent(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "secondary_analysis")
	results := []*lineage.TrackResult{dividedTrack(t, 7)}

	first, err := WriteLocationTables(folder, "exp01", results, 1)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	before := readFile(t, first.Stats)

	if _, err := WriteLocationTables(folder, "exp01", results, 1); err != nil {
		t.Fatalf("second write: %v", err)
	}
	after := readFile(t, first.Stats)
	if before != after {
		t.Error("re-running over the same input changed the output bytes")
	}
}

func parseCSV(t *testing.T, s string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func cellAt(t *testing.T, header, row []string, col string) string {
	t.Helper()
	for i, name := range header {
		if name == col {
			return row[i]
		}
	}
	t.Fatalf("no column %q", col)
	return ""
}
