package lineage

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

// SubtrackStats is the kinematic summary of one subtrack. Metrics that are
// undefined for the segment are NaN: the speed statistics of a segment with
// no chain edges, the directional-change mean of a segment with fewer than
// two, and the tortuosity of a segment whose endpoints coincide. Emitters
// render NaN as a missing value, never as a literal.
type SubtrackStats struct {
	SubtrackID    string
	TrackID       int64
	SubtrackIndex int
	Generation    int

	StartFrame  int
	EndFrame    int
	Duration    int
	NumberSpots int
	NumberEdges int

	StartX, StartY, StartZ float64
	EndX, EndY, EndZ       float64
	MeanX, MeanY, MeanZ    float64

	NetDisplacement float64
	TotalDistance   float64
	MaxDistance     float64

	SpeedMean   float64
	SpeedMin    float64
	SpeedMax    float64
	SpeedMedian float64
	SpeedStd    float64

	// ConfinementRatio and Linearity are the same quantity under the two
	// names downstream tooling expects; both columns are emitted.
	ConfinementRatio          float64
	Linearity                 float64
	MeanStraightLineSpeed     float64
	MeanDirectionalChangeRate float64
	OutreachRatio             float64
	Tortuosity                float64

	MeanQuality   float64
	MeanIntensity []float64
}

// ComputeStats derives the kinematic summary of one subtrack from its
// ordered spots and chain edges. The division edge, when present, is not
// part of the segment's path and contributes to no metric here.
func ComputeStats(sub *Subtrack) SubtrackStats {
	first := sub.Spots[0]
	last := sub.Spots[len(sub.Spots)-1]

	st := SubtrackStats{
		SubtrackID:    sub.ID(),
		TrackID:       sub.TrackID,
		SubtrackIndex: sub.Index,
		Generation:    sub.Generation,
		StartFrame:    sub.StartFrame(),
		EndFrame:      sub.EndFrame(),
		Duration:      sub.Duration(),
		NumberSpots:   len(sub.Spots),
		NumberEdges:   len(sub.Edges),
		StartX:        first.X, StartY: first.Y, StartZ: first.Z,
		EndX: last.X, EndY: last.Y, EndZ: last.Z,
	}

	for _, s := range sub.Spots {
		st.MeanX += s.X
		st.MeanY += s.Y
		st.MeanZ += s.Z
		if d := spotDistance(first, s); d > st.MaxDistance {
			st.MaxDistance = d
		}
	}
	n := float64(len(sub.Spots))
	st.MeanX /= n
	st.MeanY /= n
	st.MeanZ /= n

	st.NetDisplacement = spotDistance(first, last)
	for _, e := range sub.Edges {
		st.TotalDistance += e.Displacement
	}

	st.SpeedMean, st.SpeedMin, st.SpeedMax, st.SpeedMedian, st.SpeedStd = speedStats(sub.Edges)

	// Ratio metrics guard their zero denominators: a stationary or
	// single-spot segment reports 0 confinement and outreach, and a closed
	// path has no defined tortuosity.
	if st.TotalDistance > 0 {
		st.ConfinementRatio = st.NetDisplacement / st.TotalDistance
		st.OutreachRatio = st.MaxDistance / st.TotalDistance
	}
	st.Linearity = st.ConfinementRatio
	st.MeanStraightLineSpeed = st.NetDisplacement / float64(st.Duration)
	if st.NetDisplacement > 0 {
		st.Tortuosity = st.TotalDistance / st.NetDisplacement
	} else {
		st.Tortuosity = math.NaN()
	}
	st.MeanDirectionalChangeRate = meanDirectionalChange(sub.Edges)

	st.MeanQuality = meanOrZero(sub.Spots, func(s trackmate.Spot) float64 { return s.Quality })
	channels := 0
	for _, s := range sub.Spots {
		if len(s.MeanIntensity) > channels {
			channels = len(s.MeanIntensity)
		}
	}
	if channels > 0 {
		st.MeanIntensity = make([]float64, channels)
		for ch := 0; ch < channels; ch++ {
			st.MeanIntensity[ch] = meanOrZero(sub.Spots, func(s trackmate.Spot) float64 {
				if ch < len(s.MeanIntensity) {
					return s.MeanIntensity[ch]
				}
				return math.NaN()
			})
		}
	}
	return st
}

// speedStats summarizes the per-edge speeds of a segment. All five values
// are NaN when the segment has no edge with a defined speed.
func speedStats(edges []trackmate.Edge) (mean, min, max, median, std float64) {
	speeds := make([]float64, 0, len(edges))
	for _, e := range edges {
		if !math.IsNaN(e.Speed) {
			speeds = append(speeds, e.Speed)
		}
	}
	if len(speeds) == 0 {
		nan := math.NaN()
		return nan, nan, nan, nan, nan
	}
	mean = stat.Mean(speeds, nil)
	min = floats.Min(speeds)
	max = floats.Max(speeds)
	sorted := append([]float64(nil), speeds...)
	sort.Float64s(sorted)
	median = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	std = stat.PopStdDev(speeds, nil)
	return mean, min, max, median, std
}

// meanDirectionalChange averages the defined per-edge directional-change
// rates of a segment. NaN for segments with fewer than two edges, and when
// no edge carries a defined rate (the first edge after a track root never
// does).
func meanDirectionalChange(edges []trackmate.Edge) float64 {
	if len(edges) < 2 {
		return math.NaN()
	}
	vals := make([]float64, 0, len(edges))
	for _, e := range edges {
		if !math.IsNaN(e.DirectionalChangeRate) {
			vals = append(vals, e.DirectionalChangeRate)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// meanOrZero averages f over the spots, skipping NaN readings. A segment
// where every reading is missing reports 0, matching the upstream exporter's
// fallback for absent quality and intensity columns.
func meanOrZero(spots []trackmate.Spot, f func(trackmate.Spot) float64) float64 {
	var sum float64
	var n int
	for _, s := range spots {
		v := f(s)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
