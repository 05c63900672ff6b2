package lineage

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

// tspot builds a test spot for track 7 with optional metrics left missing.
func tspot(id int64, frame int, x, y float64) trackmate.Spot {
	return trackmate.Spot{
		ID: id, TrackID: 7, Frame: frame,
		X: x, Y: y,
		Quality: math.NaN(), Radius: math.NaN(), Area: math.NaN(),
	}
}

// tedge builds a test edge with all metrics missing, the way an edge table
// without metric columns parses. The graph loader derives them.
func tedge(src, tgt int64) trackmate.Edge {
	return trackmate.Edge{
		TrackID: 7, SourceID: src, TargetID: tgt,
		Displacement:          math.NaN(),
		Speed:                 math.NaN(),
		DirectionalChangeRate: math.NaN(),
		EdgeTime:              math.NaN(),
	}
}

// chain builds a straight-line track: one spot per frame 0..n-1 at x=frame.
func chain(n int) ([]trackmate.Spot, []trackmate.Edge) {
	spots := make([]trackmate.Spot, 0, n)
	edges := make([]trackmate.Edge, 0, n-1)
	for i := 0; i < n; i++ {
		spots = append(spots, tspot(int64(i), i, float64(i), 0))
		if i > 0 {
			edges = append(edges, tedge(int64(i-1), int64(i)))
		}
	}
	return spots, edges
}

func TestBuildTrackGraph(t *testing.T) {
	t.Parallel()

	spots, edges := chain(4)
	g, err := BuildTrackGraph(7, spots, edges)
	require.NoError(t, err)
	assert.Equal(t, int64(7), g.TrackID)
	assert.Equal(t, 4, g.SpotCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []int64{0}, g.Roots())
}

func TestBuildTrackGraphChildOrdering(t *testing.T) {
	t.Parallel()

	// Two daughters in the same frame, listed out of order in the input:
	// traversal order must be by frame then spot id regardless.
	spots := []trackmate.Spot{
		tspot(1, 0, 0, 0),
		tspot(9, 1, 1, 1),
		tspot(4, 1, 1, -1),
		tspot(6, 2, 2, 2),
	}
	edges := []trackmate.Edge{
		tedge(1, 9),
		tedge(1, 4),
		tedge(9, 6),
	}
	g, err := BuildTrackGraph(7, spots, edges)
	require.NoError(t, err)

	out := g.nodes[1].out
	require.Len(t, out, 2)
	assert.Equal(t, int64(4), out[0].TargetID)
	assert.Equal(t, int64(9), out[1].TargetID)
}

func TestBuildTrackGraphErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing target spot", func(t *testing.T) {
		t.Parallel()
		spots := []trackmate.Spot{tspot(1, 0, 0, 0)}
		_, err := BuildTrackGraph(7, spots, []trackmate.Edge{tedge(1, 99)})
		var mErr *MalformedTrackError
		require.ErrorAs(t, err, &mErr)
		assert.Equal(t, int64(7), mErr.TrackID)
		assert.Contains(t, mErr.Error(), "99")
	})

	t.Run("missing source spot", func(t *testing.T) {
		t.Parallel()
		spots := []trackmate.Spot{tspot(2, 1, 0, 0)}
		_, err := BuildTrackGraph(7, spots, []trackmate.Edge{tedge(99, 2)})
		var mErr *MalformedTrackError
		require.ErrorAs(t, err, &mErr)
	})

	t.Run("same frame edge", func(t *testing.T) {
		t.Parallel()
		spots := []trackmate.Spot{tspot(1, 3, 0, 0), tspot(2, 3, 1, 0)}
		_, err := BuildTrackGraph(7, spots, []trackmate.Edge{tedge(1, 2)})
		var mErr *MalformedTrackError
		require.ErrorAs(t, err, &mErr)
		assert.Contains(t, mErr.Error(), "advance in time")
	})

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()
		// A cycle needs at least one edge going backward in time, which the
		// frame check refuses.
		spots := []trackmate.Spot{tspot(1, 0, 0, 0), tspot(2, 1, 1, 0)}
		edges := []trackmate.Edge{tedge(1, 2), tedge(2, 1)}
		_, err := BuildTrackGraph(7, spots, edges)
		var mErr *MalformedTrackError
		require.ErrorAs(t, err, &mErr)
	})

	t.Run("duplicate spot id", func(t *testing.T) {
		t.Parallel()
		spots := []trackmate.Spot{tspot(1, 0, 0, 0), tspot(1, 1, 1, 0)}
		_, err := BuildTrackGraph(7, spots, nil)
		var mErr *MalformedTrackError
		require.ErrorAs(t, err, &mErr)
		assert.Contains(t, mErr.Error(), "duplicate")
	})

	t.Run("no spots", func(t *testing.T) {
		t.Parallel()
		_, err := BuildTrackGraph(7, nil, nil)
		var mErr *MalformedTrackError
		require.ErrorAs(t, err, &mErr)
	})
}

func TestDeriveEdgeMetrics(t *testing.T) {
	t.Parallel()

	// 3-4-5 triangle between frames 0 and 2: displacement 5 over two frames.
	spots := []trackmate.Spot{tspot(1, 0, 0, 0), tspot(2, 2, 3, 4)}
	g, err := BuildTrackGraph(7, spots, []trackmate.Edge{tedge(1, 2)})
	require.NoError(t, err)

	e := g.nodes[1].out[0]
	assert.InDelta(t, 5.0, e.Displacement, 1e-12)
	assert.InDelta(t, 2.5, e.Speed, 1e-12, "gap-closing link spans two frames")
	assert.InDelta(t, 1.0, e.EdgeTime, 1e-12)
}

func TestDeriveEdgeMetricsKeepsProvidedValues(t *testing.T) {
	t.Parallel()

	spots := []trackmate.Spot{tspot(1, 0, 0, 0), tspot(2, 1, 3, 4)}
	in := tedge(1, 2)
	in.Displacement = 42
	in.Speed = 41
	g, err := BuildTrackGraph(7, spots, []trackmate.Edge{in})
	require.NoError(t, err)

	e := g.nodes[1].out[0]
	assert.Equal(t, 42.0, e.Displacement)
	assert.Equal(t, 41.0, e.Speed)
}

func TestDeriveDirectionalChange(t *testing.T) {
	t.Parallel()

	// Right-angle turn: east one step, then north one step.
	spots := []trackmate.Spot{
		tspot(1, 0, 0, 0),
		tspot(2, 1, 1, 0),
		tspot(3, 2, 1, 1),
	}
	edges := []trackmate.Edge{tedge(1, 2), tedge(2, 3)}
	g, err := BuildTrackGraph(7, spots, edges)
	require.NoError(t, err)

	first := g.nodes[1].out[0]
	assert.True(t, math.IsNaN(first.DirectionalChangeRate), "edge without predecessor has no defined rate")

	second := g.nodes[2].out[0]
	assert.InDelta(t, math.Pi/2, second.DirectionalChangeRate, 1e-12)
}

func TestAngleBetween(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, angleBetween(1, 0, 0, 2, 0, 0), 1e-12)
	assert.InDelta(t, math.Pi, angleBetween(1, 0, 0, -3, 0, 0), 1e-12)
	assert.InDelta(t, math.Pi/2, angleBetween(0, 1, 0, 0, 0, 1), 1e-12)
	assert.True(t, math.IsNaN(angleBetween(0, 0, 0, 1, 0, 0)))
}

func TestErrorMessagesCarryTrackID(t *testing.T) {
	t.Parallel()

	cases := []error{
		&MalformedTrackError{TrackID: 12, Reason: "x"},
		&MultipleRootsError{TrackID: 12, RootIDs: []int64{1, 2}},
		&UnsupportedMergeError{TrackID: 12, SpotID: 5},
	}
	for _, err := range cases {
		assert.Contains(t, err.Error(), "track 12")
	}

	var merr *MultipleRootsError
	assert.True(t, errors.As(cases[1], &merr))
}
