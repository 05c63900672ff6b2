// Package trackmate reads TrackMate-style tracking exports: the spot, edge,
// and track CSV tables written per imaging location. Parsing is tolerant of
// the decorative sub-header rows TrackMate places between the header and the
// data, and of optional columns that vary between exporter versions. All
// values are reported in frame units (the frame interval is the time unit).
package trackmate

import "sort"

// UnassignedTrack marks spots and edges that do not belong to any track.
const UnassignedTrack int64 = -1

// Spot is one detected object at one timepoint. Optional numeric attributes
// that are absent from the input parse as NaN.
type Spot struct {
	ID      int64
	TrackID int64
	Frame   int
	X       float64
	Y       float64
	Z       float64
	Quality     float64
	Radius      float64
	Area        float64
	Circularity float64

	// MeanIntensity holds per-channel mean intensities, indexed by
	// channel-1. Length matches Tables.IntensityChannels.
	MeanIntensity []float64
}

// Edge is a directed temporal link between two spots. Numeric attributes the
// exporter did not provide parse as NaN; the analysis derives them from spot
// positions where defined.
type Edge struct {
	TrackID               int64
	SourceID              int64
	TargetID              int64
	Displacement          float64
	Speed                 float64
	DirectionalChangeRate float64
	EdgeTime              float64
}

// TrackSummary is one row of the tracker's track-level table.
type TrackSummary struct {
	TrackID      int64
	NumberSplits int
	NumberMerges int
	NumberSpots  int
	NumberGaps   int
	StartFrame   int
	StopFrame    int
}

// Duration returns the inclusive frame count of the track.
func (t TrackSummary) Duration() int {
	return t.StopFrame - t.StartFrame + 1
}

// Tables holds one location's parsed tracking output plus lookup indices.
type Tables struct {
	Spots  []Spot
	Edges  []Edge
	Tracks []TrackSummary

	// IntensityChannels is the number of MEAN_INTENSITY_CH* columns found
	// in the spots table.
	IntensityChannels int

	spotByID     map[int64]int
	spotsByTrack map[int64][]int
	edgesByTrack map[int64][]int
}

// index builds the lookup maps. Called once after parsing.
func (t *Tables) index() {
	t.spotByID = make(map[int64]int, len(t.Spots))
	t.spotsByTrack = make(map[int64][]int)
	for i, s := range t.Spots {
		t.spotByID[s.ID] = i
		if s.TrackID != UnassignedTrack {
			t.spotsByTrack[s.TrackID] = append(t.spotsByTrack[s.TrackID], i)
		}
	}
	t.edgesByTrack = make(map[int64][]int)
	for i, e := range t.Edges {
		owner := UnassignedTrack
		if j, ok := t.spotByID[e.SourceID]; ok && t.Spots[j].TrackID != UnassignedTrack {
			owner = t.Spots[j].TrackID
		} else if j, ok := t.spotByID[e.TargetID]; ok && t.Spots[j].TrackID != UnassignedTrack {
			owner = t.Spots[j].TrackID
		} else if e.TrackID != UnassignedTrack {
			owner = e.TrackID
		}
		if owner != UnassignedTrack {
			t.edgesByTrack[owner] = append(t.edgesByTrack[owner], i)
		}
	}
}

// Spot returns the spot with the given id.
func (t *Tables) Spot(id int64) (Spot, bool) {
	i, ok := t.spotByID[id]
	if !ok {
		return Spot{}, false
	}
	return t.Spots[i], true
}

// TrackIDs returns the ids from the track-level table in ascending order.
func (t *Tables) TrackIDs() []int64 {
	ids := make([]int64, 0, len(t.Tracks))
	for _, tr := range t.Tracks {
		ids = append(ids, tr.TrackID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Summary returns the track-level row for the given track id.
func (t *Tables) Summary(trackID int64) (TrackSummary, bool) {
	for _, tr := range t.Tracks {
		if tr.TrackID == trackID {
			return tr, true
		}
	}
	return TrackSummary{}, false
}

// SpotsForTrack returns the spots assigned to one track, ordered by frame
// then spot id.
func (t *Tables) SpotsForTrack(trackID int64) []Spot {
	idx := t.spotsByTrack[trackID]
	out := make([]Spot, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.Spots[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EdgesForTrack returns the edges whose source or target spot belongs to the
// given track, in input order.
func (t *Tables) EdgesForTrack(trackID int64) []Edge {
	idx := t.edgesByTrack[trackID]
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.Edges[i])
	}
	return out
}
