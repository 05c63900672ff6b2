package lineage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

// twoDivisionTrack builds a track dividing twice: an eleven-spot trunk over
// frames 0-10, a long daughter running unbranched to frame 93, and a short
// daughter over frames 11-14 that divides again into two single-spot leaves
// at frame 15. Spot ids are chosen so the long daughter sorts first among
// the frame-11 siblings.
func twoDivisionTrack() ([]trackmate.Spot, []trackmate.Edge) {
	var spots []trackmate.Spot
	var edges []trackmate.Edge

	for f := 0; f <= 10; f++ {
		spots = append(spots, tspot(int64(f), f, float64(f), 0))
		if f > 0 {
			edges = append(edges, tedge(int64(f-1), int64(f)))
		}
	}

	// Long daughter: ids 100.. for frames 11..93.
	for f := 11; f <= 93; f++ {
		id := int64(100 + f - 11)
		spots = append(spots, tspot(id, f, float64(f), 1))
		if f == 11 {
			edges = append(edges, tedge(10, id))
		} else {
			edges = append(edges, tedge(id-1, id))
		}
	}

	// Short daughter: ids 200..203 for frames 11..14.
	for f := 11; f <= 14; f++ {
		id := int64(200 + f - 11)
		spots = append(spots, tspot(id, f, float64(f), -1))
		if f == 11 {
			edges = append(edges, tedge(10, id))
		} else {
			edges = append(edges, tedge(id-1, id))
		}
	}

	// Two leaves at frame 15 off the short daughter's last spot.
	spots = append(spots, tspot(300, 15, 15, -2), tspot(400, 15, 15, -3))
	edges = append(edges, tedge(203, 300), tedge(203, 400))

	return spots, edges
}

func decompose(t *testing.T, spots []trackmate.Spot, edges []trackmate.Edge) *LineageTree {
	t.Helper()
	g, err := BuildTrackGraph(7, spots, edges)
	require.NoError(t, err)
	tree, err := Decompose(g)
	require.NoError(t, err)
	return tree
}

func TestDecomposeUnbranchedTrack(t *testing.T) {
	t.Parallel()

	spots, edges := chain(5)
	tree := decompose(t, spots, edges)

	require.Len(t, tree.Subtracks, 1)
	s := tree.Subtracks[0]
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, 0, s.Generation)
	assert.Equal(t, 0, s.ParentIndex)
	assert.Equal(t, -1, s.SplitFrame)
	assert.Equal(t, []int{1}, s.PathFromRoot)
	assert.Len(t, s.Spots, 5)
	assert.Len(t, s.Edges, 4)
	assert.Nil(t, s.DivisionEdge)
	assert.Equal(t, "Track_7_Sub_1", s.ID())
	assert.Equal(t, "", s.ParentID())
	assert.Equal(t, 0, s.StartFrame())
	assert.Equal(t, 4, s.EndFrame())
	assert.Equal(t, 5, s.Duration())
}

func TestDecomposeSingleSpotTrack(t *testing.T) {
	t.Parallel()

	tree := decompose(t, []trackmate.Spot{tspot(1, 6, 0, 0)}, nil)

	require.Len(t, tree.Subtracks, 1)
	s := tree.Subtracks[0]
	assert.Len(t, s.Spots, 1)
	assert.Empty(t, s.Edges)
	assert.Equal(t, 6, s.StartFrame())
	assert.Equal(t, 6, s.EndFrame())
	assert.Equal(t, 1, s.Duration())
}

func TestDecomposeTwoDivisions(t *testing.T) {
	t.Parallel()

	spots, edges := twoDivisionTrack()
	tree := decompose(t, spots, edges)
	require.Len(t, tree.Subtracks, 5)

	type want struct {
		start, end, spots int
		generation        int
		parentIndex       int
		splitFrame        int
		path              []int
	}
	wants := []want{
		{start: 0, end: 10, spots: 11, generation: 0, parentIndex: 0, splitFrame: -1, path: []int{1}},
		{start: 11, end: 93, spots: 83, generation: 1, parentIndex: 1, splitFrame: 10, path: []int{1, 2}},
		{start: 11, end: 14, spots: 4, generation: 1, parentIndex: 1, splitFrame: 10, path: []int{1, 3}},
		{start: 15, end: 15, spots: 1, generation: 2, parentIndex: 3, splitFrame: 14, path: []int{1, 3, 4}},
		{start: 15, end: 15, spots: 1, generation: 2, parentIndex: 3, splitFrame: 14, path: []int{1, 3, 5}},
	}
	for i, w := range wants {
		s := tree.Subtracks[i]
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, w.start, s.StartFrame(), "subtrack %d start", i+1)
		assert.Equal(t, w.end, s.EndFrame(), "subtrack %d end", i+1)
		assert.Len(t, s.Spots, w.spots, "subtrack %d spots", i+1)
		assert.Len(t, s.Edges, w.spots-1, "subtrack %d edges", i+1)
		assert.Equal(t, w.generation, s.Generation, "subtrack %d generation", i+1)
		assert.Equal(t, w.parentIndex, s.ParentIndex, "subtrack %d parent", i+1)
		assert.Equal(t, w.splitFrame, s.SplitFrame, "subtrack %d split frame", i+1)
		assert.Equal(t, w.path, s.PathFromRoot, "subtrack %d path", i+1)
	}

	assert.Equal(t, "Track_7_Sub_3", tree.Subtracks[2].ID())
	assert.Equal(t, "Track_7_Sub_1", tree.Subtracks[2].ParentID())

	// The dividing spot stays with the segment that ends at the division;
	// each daughter starts at the next frame's spot and carries the edge
	// that crosses the division.
	root := tree.Subtracks[0]
	assert.Equal(t, int64(10), root.Spots[len(root.Spots)-1].ID)
	for _, s := range tree.Subtracks[1:] {
		require.NotNil(t, s.DivisionEdge, "subtrack %d", s.Index)
		assert.Equal(t, s.Spots[0].ID, s.DivisionEdge.TargetID, "subtrack %d", s.Index)
	}
	assert.Equal(t, int64(10), tree.Subtracks[1].DivisionEdge.SourceID)
	assert.Equal(t, int64(203), tree.Subtracks[3].DivisionEdge.SourceID)
}

func TestDecomposeCoversEverySpotOnce(t *testing.T) {
	t.Parallel()

	spots, edges := twoDivisionTrack()
	tree := decompose(t, spots, edges)

	seen := make(map[int64]int)
	chainEdges := 0
	for _, s := range tree.Subtracks {
		for _, sp := range s.Spots {
			seen[sp.ID]++
		}
		chainEdges += len(s.Edges)
	}
	assert.Len(t, seen, len(spots))
	for id, n := range seen {
		assert.Equal(t, 1, n, "spot %d", id)
	}
	// Every edge is owned exactly once: chain edges plus one division edge
	// per non-root subtrack.
	assert.Equal(t, len(edges), chainEdges+len(tree.Subtracks)-1)
}

func TestDecomposeConsecutiveDivisions(t *testing.T) {
	t.Parallel()

	// The first daughter divides again immediately, so its segment is a
	// single spot at frame 1.
	spots := []trackmate.Spot{
		tspot(1, 0, 0, 0),
		tspot(2, 1, 1, 0),
		tspot(3, 1, 1, 1),
		tspot(4, 2, 2, 0),
		tspot(5, 2, 2, 1),
	}
	edges := []trackmate.Edge{
		tedge(1, 2), tedge(1, 3),
		tedge(2, 4), tedge(2, 5),
	}
	tree := decompose(t, spots, edges)
	require.Len(t, tree.Subtracks, 5)

	mid := tree.Subtracks[1]
	assert.Equal(t, []int64{2}, spotIDs(mid.Spots))
	assert.Empty(t, mid.Edges)
	assert.Equal(t, 1, mid.Generation)

	assert.Equal(t, []int{1, 2, 3}, tree.Subtracks[2].PathFromRoot)
	assert.Equal(t, 2, tree.Subtracks[2].Generation)
	assert.Equal(t, []int64{4}, spotIDs(tree.Subtracks[2].Spots))
	assert.Equal(t, []int64{5}, spotIDs(tree.Subtracks[3].Spots))
	assert.Equal(t, []int64{3}, spotIDs(tree.Subtracks[4].Spots))
	assert.Equal(t, 1, tree.Subtracks[4].Generation)
}

func spotIDs(spots []trackmate.Spot) []int64 {
	ids := make([]int64, len(spots))
	for i, s := range spots {
		ids[i] = s.ID
	}
	return ids
}

func TestDecomposeMultipleRoots(t *testing.T) {
	t.Parallel()

	spots := []trackmate.Spot{
		tspot(3, 0, 0, 0), tspot(4, 1, 1, 0),
		tspot(8, 0, 5, 0), tspot(9, 1, 6, 0),
	}
	edges := []trackmate.Edge{tedge(3, 4), tedge(8, 9)}
	g, err := BuildTrackGraph(7, spots, edges)
	require.NoError(t, err)

	_, err = Decompose(g)
	var rErr *MultipleRootsError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, int64(7), rErr.TrackID)
	assert.Equal(t, []int64{3, 8}, rErr.RootIDs)
}

func TestDecomposeMerge(t *testing.T) {
	t.Parallel()

	// A division at frame 0 whose daughters fuse back at frame 2.
	spots := []trackmate.Spot{
		tspot(1, 0, 0, 0),
		tspot(2, 1, 1, 0),
		tspot(3, 1, 1, 1),
		tspot(4, 2, 2, 0),
	}
	edges := []trackmate.Edge{
		tedge(1, 2), tedge(1, 3),
		tedge(2, 4), tedge(3, 4),
	}
	g, err := BuildTrackGraph(7, spots, edges)
	require.NoError(t, err)

	_, err = Decompose(g)
	var mErr *UnsupportedMergeError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, int64(7), mErr.TrackID)
	assert.Equal(t, int64(4), mErr.SpotID)
}

func TestDecomposeDeterministic(t *testing.T) {
	t.Parallel()

	spots, edges := twoDivisionTrack()

	first := decompose(t, spots, edges)

	// Reversed input order must not change numbering or content.
	rs := make([]trackmate.Spot, len(spots))
	re := make([]trackmate.Edge, len(edges))
	for i, s := range spots {
		rs[len(rs)-1-i] = s
	}
	for i, e := range edges {
		re[len(re)-1-i] = e
	}
	second := decompose(t, rs, re)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("decomposition depends on input order (-first +second):\n%s", diff)
	}
}

func TestAnalyzeTrack(t *testing.T) {
	t.Parallel()

	spots, edges := twoDivisionTrack()
	res, err := AnalyzeTrack(7, spots, edges)
	require.NoError(t, err)

	require.Len(t, res.Tree.Subtracks, 5)
	require.Len(t, res.Stats, 5)
	for i, st := range res.Stats {
		sub := res.Tree.Subtracks[i]
		assert.Equal(t, sub.ID(), st.SubtrackID)
		assert.Equal(t, len(sub.Spots), st.NumberSpots)
		assert.Equal(t, len(sub.Edges), st.NumberEdges)
	}
}
