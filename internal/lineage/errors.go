package lineage

import "fmt"

// MalformedTrackError reports a referential or structural defect in one
// track's input rows: an edge endpoint missing from the spot table, an edge
// that does not advance in time, a duplicate spot id, or a graph with no
// root. The track is skipped; the batch continues.
type MalformedTrackError struct {
	TrackID int64
	Reason  string
}

func (e *MalformedTrackError) Error() string {
	return fmt.Sprintf("track %d: malformed track: %s", e.TrackID, e.Reason)
}

// MultipleRootsError reports a track graph with more than one spot lacking an
// incoming edge. This indicates a merge anomaly or a broken track assignment
// upstream; picking one root arbitrarily would mislabel every generation, so
// the track is refused instead.
type MultipleRootsError struct {
	TrackID int64
	RootIDs []int64
}

func (e *MultipleRootsError) Error() string {
	return fmt.Sprintf("track %d: %d root spots %v, expected exactly one", e.TrackID, len(e.RootIDs), e.RootIDs)
}

// UnsupportedMergeError reports a merge topology: one spot with two or more
// incoming edges. Merges are detected and refused rather than decomposed into
// a wrong tree.
type UnsupportedMergeError struct {
	TrackID int64
	SpotID  int64
}

func (e *UnsupportedMergeError) Error() string {
	return fmt.Sprintf("track %d: spot %d has multiple incoming edges, merge topologies are not supported", e.TrackID, e.SpotID)
}
