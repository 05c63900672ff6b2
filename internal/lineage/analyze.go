package lineage

import "github.com/lineage-data/motility.report/internal/trackmate"

// TrackResult pairs one track's lineage tree with its per-subtrack
// statistics, index-aligned with Tree.Subtracks.
type TrackResult struct {
	Tree  *LineageTree
	Stats []SubtrackStats
}

// AnalyzeTrack runs graph construction, decomposition, and statistics for
// one track's rows. Any returned error is one of the track-level types in
// this package and means the track is skipped, not that the batch failed.
func AnalyzeTrack(trackID int64, spots []trackmate.Spot, edges []trackmate.Edge) (*TrackResult, error) {
	g, err := BuildTrackGraph(trackID, spots, edges)
	if err != nil {
		return nil, err
	}
	tree, err := Decompose(g)
	if err != nil {
		return nil, err
	}
	res := &TrackResult{
		Tree:  tree,
		Stats: make([]SubtrackStats, 0, len(tree.Subtracks)),
	}
	for _, sub := range tree.Subtracks {
		res.Stats = append(res.Stats, ComputeStats(sub))
	}
	return res, nil
}
