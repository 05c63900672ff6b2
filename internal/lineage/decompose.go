package lineage

import (
	"fmt"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

// Subtrack is a maximal non-branching segment of one track. The spot that
// divides belongs to the segment it closes; each daughter segment begins at
// the next frame's spot. A single-spot segment (a daughter lost right after
// division) is valid and carries no chain edges.
type Subtrack struct {
	TrackID int64

	// Index is the 1-based ordinal of the segment within its track, assigned
	// in pre-order: a segment is numbered before any segment of its subtree.
	Index int

	// Generation is the number of divisions between the track root and this
	// segment. The root segment is generation 0.
	Generation int

	// ParentIndex is the Index of the segment whose division spawned this
	// one, or 0 for the root segment.
	ParentIndex int

	// SplitFrame is the closing frame of the parent segment (the frame the
	// division occurred at), or -1 for the root segment.
	SplitFrame int

	// PathFromRoot lists the subtrack indices from the generation-0 segment
	// to this one, inclusive.
	PathFromRoot []int

	// Spots is the ordered spot sequence, one per frame step along the
	// segment, division spot included for the segment it closes.
	Spots []trackmate.Spot

	// Edges holds the chain edges: links with both endpoints inside this
	// segment. Always len(Spots)-1.
	Edges []trackmate.Edge

	// DivisionEdge is the link from the parent's division spot to this
	// segment's first spot; nil for the root segment. It is emitted with
	// this segment but excluded from its distance and speed statistics.
	DivisionEdge *trackmate.Edge
}

// SubtrackID renders the externally visible identifier of a subtrack.
func SubtrackID(trackID int64, index int) string {
	return fmt.Sprintf("Track_%d_Sub_%d", trackID, index)
}

// ID returns the externally visible identifier, e.g. "Track_12_Sub_3".
func (s *Subtrack) ID() string { return SubtrackID(s.TrackID, s.Index) }

// ParentID returns the parent segment's identifier, or "" for the root.
func (s *Subtrack) ParentID() string {
	if s.ParentIndex == 0 {
		return ""
	}
	return SubtrackID(s.TrackID, s.ParentIndex)
}

// StartFrame returns the frame of the first spot.
func (s *Subtrack) StartFrame() int { return s.Spots[0].Frame }

// EndFrame returns the frame of the last spot.
func (s *Subtrack) EndFrame() int { return s.Spots[len(s.Spots)-1].Frame }

// Duration returns the inclusive frame count of the segment.
func (s *Subtrack) Duration() int { return s.EndFrame() - s.StartFrame() + 1 }

// LineageTree is one track's decomposition: every subtrack in pre-order,
// which places a parent before all segments of its subtree.
type LineageTree struct {
	TrackID   int64
	Subtracks []*Subtrack
}

// branchStart is one pending traversal unit: a segment to build, starting at
// a spot, spawned from a parent segment across a division edge.
type branchStart struct {
	spotID     int64
	parentIdx  int
	generation int
	parentPath []int
	division   *trackmate.Edge
	splitFrame int
}

// Decompose partitions a track graph into subtracks. Traversal is an
// explicit work-list depth-first walk, so division-heavy tracks cannot
// exhaust the call stack. It fails with MultipleRootsError when the graph
// has more than one source spot and with UnsupportedMergeError the moment a
// spot with two or more incoming edges is reached.
func Decompose(g *TrackGraph) (*LineageTree, error) {
	if len(g.roots) > 1 {
		return nil, &MultipleRootsError{TrackID: g.TrackID, RootIDs: g.roots}
	}
	if len(g.roots) == 0 {
		return nil, &MalformedTrackError{TrackID: g.TrackID, Reason: "no root spot"}
	}

	tree := &LineageTree{TrackID: g.TrackID}
	stack := []branchStart{{spotID: g.roots[0], splitFrame: -1}}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sub := &Subtrack{
			TrackID:      g.TrackID,
			Index:        len(tree.Subtracks) + 1,
			Generation:   b.generation,
			ParentIndex:  b.parentIdx,
			SplitFrame:   b.splitFrame,
			DivisionEdge: b.division,
		}
		sub.PathFromRoot = make([]int, 0, len(b.parentPath)+1)
		sub.PathFromRoot = append(append(sub.PathFromRoot, b.parentPath...), sub.Index)

		cur := g.nodes[b.spotID]
		sub.Spots = append(sub.Spots, cur.spot)
		for len(cur.out) == 1 {
			e := cur.out[0]
			next := g.nodes[e.TargetID]
			if next.in > 1 {
				return nil, &UnsupportedMergeError{TrackID: g.TrackID, SpotID: next.spot.ID}
			}
			sub.Spots = append(sub.Spots, next.spot)
			sub.Edges = append(sub.Edges, e)
			cur = next
		}
		tree.Subtracks = append(tree.Subtracks, sub)

		// Division: spawn one pending segment per daughter, seeded with the
		// daughter's first spot, not the division spot. Pushed in reverse so
		// the first daughter's whole subtree is numbered before the second's.
		for i := len(cur.out) - 1; i >= 0; i-- {
			e := cur.out[i]
			child := g.nodes[e.TargetID]
			if child.in > 1 {
				return nil, &UnsupportedMergeError{TrackID: g.TrackID, SpotID: child.spot.ID}
			}
			division := e
			stack = append(stack, branchStart{
				spotID:     e.TargetID,
				parentIdx:  sub.Index,
				generation: b.generation + 1,
				parentPath: sub.PathFromRoot,
				division:   &division,
				splitFrame: cur.spot.Frame,
			})
		}
	}
	return tree, nil
}
