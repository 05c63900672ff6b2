package trackmate

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// header maps column names to field positions. Lookups for columns the file
// does not carry return -1.
type header struct {
	m map[string]int
}

func headerIndex(rec []string) header {
	h := header{m: make(map[string]int, len(rec))}
	for i, name := range rec {
		if i == 0 {
			// Excel-style exports prefix the first cell with a BOM.
			name = strings.TrimPrefix(name, "﻿")
		}
		h.m[strings.TrimSpace(name)] = i
	}
	return h
}

func (h header) col(name string) int {
	if i, ok := h.m[name]; ok {
		return i
	}
	return -1
}

func (h header) require(table string, names ...string) error {
	for _, n := range names {
		if _, ok := h.m[n]; !ok {
			return fmt.Errorf("%s table: missing required column %s", table, n)
		}
	}
	return nil
}

// cell returns the trimmed field at idx, or "" when idx is out of range.
func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// floatCell parses an optional numeric field. Absent or unparsable cells
// report NaN.
func floatCell(rec []string, idx int) float64 {
	s := cell(rec, idx)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// idCell parses an identifier field. A failed parse marks the row as one of
// TrackMate's decorative sub-header rows (column label, units, ISO flag) and
// the caller skips it.
func idCell(rec []string, idx int) (int64, bool) {
	v, err := strconv.ParseInt(cell(rec, idx), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// optionalID parses an identifier that may legitimately be blank, such as the
// TRACK_ID of an unassigned detection.
func optionalID(rec []string, idx int) int64 {
	v, err := strconv.ParseInt(cell(rec, idx), 10, 64)
	if err != nil {
		return UnassignedTrack
	}
	return v
}

// intValue parses integer-valued cells that the exporter may write with a
// decimal point ("3" or "3.0").
func intValue(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// intensityColumns returns the spot-table column index per intensity channel.
// Channel numbering follows the MEAN_INTENSITY_CH<n> suffix; an unnumbered
// MEAN_INTENSITY column is read as a single channel.
func intensityColumns(h header) []int {
	maxCh := 0
	for name := range h.m {
		var n int
		if _, err := fmt.Sscanf(name, "MEAN_INTENSITY_CH%d", &n); err == nil && n > maxCh {
			maxCh = n
		}
	}
	if maxCh == 0 {
		if i := h.col("MEAN_INTENSITY"); i >= 0 {
			return []int{i}
		}
		return nil
	}
	cols := make([]int, maxCh)
	for ch := 1; ch <= maxCh; ch++ {
		cols[ch-1] = h.col(fmt.Sprintf("MEAN_INTENSITY_CH%d", ch))
	}
	return cols
}

// ParseSpots reads a spots table. It returns the spots and the number of
// intensity channels found in the header.
func ParseSpots(r io.Reader) ([]Spot, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read spots table: %w", err)
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("spots table: empty file")
	}
	h := headerIndex(records[0])
	if err := h.require("spots", "ID", "FRAME", "POSITION_X", "POSITION_Y"); err != nil {
		return nil, 0, err
	}
	intensity := intensityColumns(h)

	var spots []Spot
	for i, rec := range records[1:] {
		line := i + 2
		id, ok := idCell(rec, h.col("ID"))
		if !ok {
			continue
		}
		frame, err := intValue(cell(rec, h.col("FRAME")))
		if err != nil {
			return nil, 0, fmt.Errorf("spots table line %d: bad FRAME %q", line, cell(rec, h.col("FRAME")))
		}
		x, err := strconv.ParseFloat(cell(rec, h.col("POSITION_X")), 64)
		if err != nil {
			return nil, 0, fmt.Errorf("spots table line %d: bad POSITION_X %q", line, cell(rec, h.col("POSITION_X")))
		}
		y, err := strconv.ParseFloat(cell(rec, h.col("POSITION_Y")), 64)
		if err != nil {
			return nil, 0, fmt.Errorf("spots table line %d: bad POSITION_Y %q", line, cell(rec, h.col("POSITION_Y")))
		}
		s := Spot{
			ID:      id,
			TrackID: optionalID(rec, h.col("TRACK_ID")),
			Frame:   frame,
			X:       x,
			Y:       y,
			Quality:     floatCell(rec, h.col("QUALITY")),
			Radius:      floatCell(rec, h.col("RADIUS")),
			Area:        floatCell(rec, h.col("AREA")),
			Circularity: floatCell(rec, h.col("CIRCULARITY")),
		}
		// Planar exports omit POSITION_Z; geometry treats them as z=0.
		if z := floatCell(rec, h.col("POSITION_Z")); !math.IsNaN(z) {
			s.Z = z
		}
		if len(intensity) > 0 {
			s.MeanIntensity = make([]float64, len(intensity))
			for ch, ci := range intensity {
				s.MeanIntensity[ch] = floatCell(rec, ci)
			}
		}
		spots = append(spots, s)
	}
	return spots, len(intensity), nil
}

// ParseEdges reads an edges table.
func ParseEdges(r io.Reader) ([]Edge, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read edges table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("edges table: empty file")
	}
	h := headerIndex(records[0])
	if err := h.require("edges", "SPOT_SOURCE_ID", "SPOT_TARGET_ID"); err != nil {
		return nil, err
	}

	var edges []Edge
	for i, rec := range records[1:] {
		line := i + 2
		src, ok := idCell(rec, h.col("SPOT_SOURCE_ID"))
		if !ok {
			continue
		}
		tgt, err := strconv.ParseInt(cell(rec, h.col("SPOT_TARGET_ID")), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edges table line %d: bad SPOT_TARGET_ID %q", line, cell(rec, h.col("SPOT_TARGET_ID")))
		}
		edges = append(edges, Edge{
			TrackID:               optionalID(rec, h.col("TRACK_ID")),
			SourceID:              src,
			TargetID:              tgt,
			Displacement:          floatCell(rec, h.col("DISPLACEMENT")),
			Speed:                 floatCell(rec, h.col("SPEED")),
			DirectionalChangeRate: floatCell(rec, h.col("DIRECTIONAL_CHANGE_RATE")),
			EdgeTime:              floatCell(rec, h.col("EDGE_TIME")),
		})
	}
	return edges, nil
}

// ParseTracks reads a track-summary table.
func ParseTracks(r io.Reader) ([]TrackSummary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read tracks table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tracks table: empty file")
	}
	h := headerIndex(records[0])
	if err := h.require("tracks", "TRACK_ID", "NUMBER_SPLITS", "TRACK_START", "TRACK_STOP"); err != nil {
		return nil, err
	}

	var tracks []TrackSummary
	for i, rec := range records[1:] {
		line := i + 2
		id, ok := idCell(rec, h.col("TRACK_ID"))
		if !ok {
			continue
		}
		splits, err := intValue(cell(rec, h.col("NUMBER_SPLITS")))
		if err != nil {
			return nil, fmt.Errorf("tracks table line %d: bad NUMBER_SPLITS %q", line, cell(rec, h.col("NUMBER_SPLITS")))
		}
		start, err := intValue(cell(rec, h.col("TRACK_START")))
		if err != nil {
			return nil, fmt.Errorf("tracks table line %d: bad TRACK_START %q", line, cell(rec, h.col("TRACK_START")))
		}
		stop, err := intValue(cell(rec, h.col("TRACK_STOP")))
		if err != nil {
			return nil, fmt.Errorf("tracks table line %d: bad TRACK_STOP %q", line, cell(rec, h.col("TRACK_STOP")))
		}
		ts := TrackSummary{
			TrackID:      id,
			NumberSplits: splits,
			StartFrame:   start,
			StopFrame:    stop,
		}
		if v, err := intValue(cell(rec, h.col("NUMBER_MERGES"))); err == nil {
			ts.NumberMerges = v
		}
		if v, err := intValue(cell(rec, h.col("NUMBER_SPOTS"))); err == nil {
			ts.NumberSpots = v
		}
		if v, err := intValue(cell(rec, h.col("NUMBER_GAPS"))); err == nil {
			ts.NumberGaps = v
		}
		tracks = append(tracks, ts)
	}
	return tracks, nil
}

// Read parses the three files of a table set into Tables.
func (ts TableSet) Read() (*Tables, error) {
	t := &Tables{}

	f, err := os.Open(ts.SpotsPath)
	if err != nil {
		return nil, err
	}
	t.Spots, t.IntensityChannels, err = ParseSpots(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ts.SpotsPath, err)
	}

	f, err = os.Open(ts.EdgesPath)
	if err != nil {
		return nil, err
	}
	t.Edges, err = ParseEdges(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ts.EdgesPath, err)
	}

	f, err = os.Open(ts.TracksPath)
	if err != nil {
		return nil, err
	}
	t.Tracks, err = ParseTracks(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ts.TracksPath, err)
	}

	t.index()
	return t, nil
}

// ReadTables discovers and parses the table set in one location directory.
func ReadTables(dir string) (*Tables, error) {
	set, err := FindTableSet(dir)
	if err != nil {
		return nil, err
	}
	return set.Read()
}
