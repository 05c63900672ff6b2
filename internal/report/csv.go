// Package report serializes the results of lineage decomposition: the three
// per-location CSV relations, and optionally an HTML chart page and a
// trajectory rose plot.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lineage-data/motility.report/internal/lineage"
	"github.com/lineage-data/motility.report/internal/trackmate"
)

// File name suffixes of the per-location output relations.
const (
	StatsFileSuffix   = "-subtrack_statistics.csv"
	EdgesFileSuffix   = "-subtrack_edges.csv"
	LineageFileSuffix = "-subtrack_lineage.csv"
)

// CSVWriter wraps one csv.Writer per output relation.
type CSVWriter struct {
	Stats   *csv.Writer
	Edges   *csv.Writer
	Lineage *csv.Writer
}

// NewCSVWriter creates a CSVWriter over the three relation writers.
func NewCSVWriter(stats, edges, lin io.Writer) *CSVWriter {
	return &CSVWriter{
		Stats:   csv.NewWriter(stats),
		Edges:   csv.NewWriter(edges),
		Lineage: csv.NewWriter(lin),
	}
}

// StatsHeader returns the statistics relation header for a location with the
// given intensity channel count.
func StatsHeader(channels int) []string {
	header := []string{
		"SUBTRACK_ID", "TRACK_ID", "SUBTRACK_INDEX", "GENERATION",
		"START_FRAME", "END_FRAME", "DURATION", "NUMBER_SPOTS", "NUMBER_EDGES",
		"START_X", "START_Y", "START_Z",
		"END_X", "END_Y", "END_Z",
		"SUBTRACK_X_LOCATION", "SUBTRACK_Y_LOCATION", "SUBTRACK_Z_LOCATION",
		"NET_DISPLACEMENT", "TOTAL_DISTANCE", "MAX_DISTANCE",
		"SUBTRACK_MEAN_SPEED", "SUBTRACK_MIN_SPEED", "SUBTRACK_MAX_SPEED",
		"SUBTRACK_MEDIAN_SPEED", "SUBTRACK_STD_SPEED",
		"CONFINEMENT_RATIO", "LINEARITY_OF_FORWARD_PROGRESSION",
		"MEAN_STRAIGHT_LINE_SPEED", "MEAN_DIRECTIONAL_CHANGE_RATE",
		"OUTREACH_RATIO", "TORTUOSITY", "MEAN_QUALITY",
	}
	for ch := 1; ch <= channels; ch++ {
		header = append(header, fmt.Sprintf("MEAN_INTENSITY_CH%d", ch))
	}
	return header
}

// EdgesHeader returns the edges relation header.
func EdgesHeader() []string {
	return []string{
		"SUBTRACK_ID", "TRACK_ID", "SPOT_SOURCE_ID", "SPOT_TARGET_ID",
		"SOURCE_FRAME", "TARGET_FRAME",
		"DISPLACEMENT", "SPEED", "DIRECTIONAL_CHANGE_RATE", "EDGE_TIME",
	}
}

// LineageHeader returns the lineage relation header.
func LineageHeader() []string {
	return []string{
		"SUBTRACK_ID", "TRACK_ID", "SUBTRACK_INDEX", "PARENT_SUBTRACK_ID",
		"GENERATION", "SPLIT_FRAME", "START_FRAME", "END_FRAME", "DURATION",
		"NUMBER_SPOTS", "PATH_FROM_ROOT",
	}
}

// WriteHeaders writes the header row of all three relations.
func (c *CSVWriter) WriteHeaders(channels int) {
	c.Stats.Write(StatsHeader(channels))
	c.Edges.Write(EdgesHeader())
	c.Lineage.Write(LineageHeader())
}

// WriteTrack writes one analyzed track into all three relations: a stats and
// a lineage row per subtrack, and an edges row per owned edge (the division
// edge leading into a daughter first, then the chain edges).
func (c *CSVWriter) WriteTrack(res *lineage.TrackResult, channels int) {
	for i, sub := range res.Tree.Subtracks {
		c.Stats.Write(statsRow(res.Stats[i], channels))
		c.Lineage.Write(lineageRow(sub))

		if d := sub.DivisionEdge; d != nil {
			c.Edges.Write(edgeRow(sub, *d, sub.SplitFrame, sub.Spots[0].Frame))
		}
		for j, e := range sub.Edges {
			c.Edges.Write(edgeRow(sub, e, sub.Spots[j].Frame, sub.Spots[j+1].Frame))
		}
	}
	c.Flush()
}

// Flush flushes all three writers and reports the first write error.
func (c *CSVWriter) Flush() error {
	c.Stats.Flush()
	c.Edges.Flush()
	c.Lineage.Flush()
	for _, w := range []*csv.Writer{c.Stats, c.Edges, c.Lineage} {
		if err := w.Error(); err != nil {
			return err
		}
	}
	return nil
}

func statsRow(st lineage.SubtrackStats, channels int) []string {
	row := []string{
		st.SubtrackID,
		strconv.FormatInt(st.TrackID, 10),
		strconv.Itoa(st.SubtrackIndex),
		strconv.Itoa(st.Generation),
		strconv.Itoa(st.StartFrame),
		strconv.Itoa(st.EndFrame),
		strconv.Itoa(st.Duration),
		strconv.Itoa(st.NumberSpots),
		strconv.Itoa(st.NumberEdges),
		formatFloat(st.StartX), formatFloat(st.StartY), formatFloat(st.StartZ),
		formatFloat(st.EndX), formatFloat(st.EndY), formatFloat(st.EndZ),
		formatFloat(st.MeanX), formatFloat(st.MeanY), formatFloat(st.MeanZ),
		formatFloat(st.NetDisplacement),
		formatFloat(st.TotalDistance),
		formatFloat(st.MaxDistance),
		formatFloat(st.SpeedMean),
		formatFloat(st.SpeedMin),
		formatFloat(st.SpeedMax),
		formatFloat(st.SpeedMedian),
		formatFloat(st.SpeedStd),
		formatFloat(st.ConfinementRatio),
		formatFloat(st.Linearity),
		formatFloat(st.MeanStraightLineSpeed),
		formatFloat(st.MeanDirectionalChangeRate),
		formatFloat(st.OutreachRatio),
		formatFloat(st.Tortuosity),
		formatFloat(st.MeanQuality),
	}
	for ch := 0; ch < channels; ch++ {
		v := 0.0
		if ch < len(st.MeanIntensity) {
			v = st.MeanIntensity[ch]
		}
		row = append(row, formatFloat(v))
	}
	return row
}

func edgeRow(sub *lineage.Subtrack, e trackmate.Edge, sourceFrame, targetFrame int) []string {
	return []string{
		sub.ID(),
		strconv.FormatInt(sub.TrackID, 10),
		strconv.FormatInt(e.SourceID, 10),
		strconv.FormatInt(e.TargetID, 10),
		strconv.Itoa(sourceFrame),
		strconv.Itoa(targetFrame),
		formatFloat(e.Displacement),
		formatFloat(e.Speed),
		formatFloat(e.DirectionalChangeRate),
		formatFloat(e.EdgeTime),
	}
}

func lineageRow(sub *lineage.Subtrack) []string {
	splitFrame := ""
	if sub.SplitFrame >= 0 {
		splitFrame = strconv.Itoa(sub.SplitFrame)
	}
	path := make([]string, len(sub.PathFromRoot))
	for i, idx := range sub.PathFromRoot {
		path[i] = strconv.Itoa(idx)
	}
	return []string{
		sub.ID(),
		strconv.FormatInt(sub.TrackID, 10),
		strconv.Itoa(sub.Index),
		sub.ParentID(),
		strconv.Itoa(sub.Generation),
		splitFrame,
		strconv.Itoa(sub.StartFrame()),
		strconv.Itoa(sub.EndFrame()),
		strconv.Itoa(sub.Duration()),
		strconv.Itoa(len(sub.Spots)),
		strings.Join(path, "/"),
	}
}

// formatFloat renders a metric cell. Undefined metrics become the empty
// field, never a NaN literal.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.6f", v)
}

// TablePaths lists the relation files written for one location.
type TablePaths struct {
	Stats   string
	Edges   string
	Lineage string
}

// WriteLocationTables writes the three relations for one location into
// folder, creating it if needed. Results must already be ordered by track id;
// headers are written even when results is empty, so a location with no
// admitted tracks still produces complete, empty relations.
func WriteLocationTables(folder, base string, results []*lineage.TrackResult, channels int) (TablePaths, error) {
	paths := TablePaths{
		Stats:   filepath.Join(folder, base+StatsFileSuffix),
		Edges:   filepath.Join(folder, base+EdgesFileSuffix),
		Lineage: filepath.Join(folder, base+LineageFileSuffix),
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return paths, fmt.Errorf("create output folder: %w", err)
	}

	files := make([]*os.File, 0, 3)
	open := func(path string) (*os.File, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		files = append(files, f)
		return f, nil
	}
	closeAll := func() error {
		var firstErr error
		for _, f := range files {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	stats, err := open(paths.Stats)
	if err != nil {
		return paths, err
	}
	edges, err := open(paths.Edges)
	if err != nil {
		closeAll()
		return paths, err
	}
	lin, err := open(paths.Lineage)
	if err != nil {
		closeAll()
		return paths, err
	}

	w := NewCSVWriter(stats, edges, lin)
	w.WriteHeaders(channels)
	for _, res := range results {
		w.WriteTrack(res, channels)
	}
	if err := w.Flush(); err != nil {
		closeAll()
		return paths, fmt.Errorf("write output tables: %w", err)
	}
	if err := closeAll(); err != nil {
		return paths, fmt.Errorf("close output tables: %w", err)
	}
	return paths, nil
}
