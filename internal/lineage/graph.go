// Package lineage decomposes branching cell tracks into non-branching
// segments ("subtracks"), assigns each a place in the division tree, and
// computes per-segment motility statistics. Input is the spot and edge rows
// of one track as read by the trackmate package; all processing is pure and
// local to one track, so callers are free to run many tracks in parallel.
package lineage

import (
	"fmt"
	"math"
	"sort"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

// node is one spot in the track graph together with its links. Outgoing
// edges are kept sorted by target frame then target spot id so traversal
// order, and with it subtrack numbering, is deterministic.
type node struct {
	spot   trackmate.Spot
	out    []trackmate.Edge
	in     int
	inEdge trackmate.Edge // valid when in == 1
}

// TrackGraph is the in-memory temporal graph of one track, keyed by spot id.
// Construction validates the structural invariants; a valid graph is a DAG
// whose frame index strictly increases along every edge.
type TrackGraph struct {
	TrackID int64

	nodes     map[int64]*node
	roots     []int64
	edgeCount int
}

// SpotCount returns the number of spots in the graph.
func (g *TrackGraph) SpotCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *TrackGraph) EdgeCount() int { return g.edgeCount }

// Roots returns the spot ids with no incoming edge, ascending.
func (g *TrackGraph) Roots() []int64 { return g.roots }

// BuildTrackGraph assembles the adjacency structure for one track from its
// spot and edge rows. It fails with MalformedTrackError when an edge
// references a spot id absent from the spot table, when a spot id repeats,
// or when an edge does not advance in time. The time check also rules out
// cycles, since frames strictly increase along every edge of a valid graph.
// Edge metrics the input did not carry (displacement, speed, directional
// change) are derived from spot positions where defined.
func BuildTrackGraph(trackID int64, spots []trackmate.Spot, edges []trackmate.Edge) (*TrackGraph, error) {
	if len(spots) == 0 {
		return nil, &MalformedTrackError{TrackID: trackID, Reason: "no spots in the spot table"}
	}
	g := &TrackGraph{TrackID: trackID, nodes: make(map[int64]*node, len(spots))}
	for _, s := range spots {
		if _, dup := g.nodes[s.ID]; dup {
			return nil, &MalformedTrackError{TrackID: trackID, Reason: fmt.Sprintf("duplicate spot id %d", s.ID)}
		}
		g.nodes[s.ID] = &node{spot: s}
	}
	for _, e := range edges {
		src, ok := g.nodes[e.SourceID]
		if !ok {
			return nil, &MalformedTrackError{TrackID: trackID, Reason: fmt.Sprintf("edge %d->%d references spot %d absent from the spot table", e.SourceID, e.TargetID, e.SourceID)}
		}
		tgt, ok := g.nodes[e.TargetID]
		if !ok {
			return nil, &MalformedTrackError{TrackID: trackID, Reason: fmt.Sprintf("edge %d->%d references spot %d absent from the spot table", e.SourceID, e.TargetID, e.TargetID)}
		}
		if tgt.spot.Frame <= src.spot.Frame {
			return nil, &MalformedTrackError{TrackID: trackID, Reason: fmt.Sprintf("edge %d->%d does not advance in time (frame %d to %d)", e.SourceID, e.TargetID, src.spot.Frame, tgt.spot.Frame)}
		}
		deriveEdgeMetrics(&e, src.spot, tgt.spot)
		src.out = append(src.out, e)
		tgt.in++
		tgt.inEdge = e
		g.edgeCount++
	}
	for _, n := range g.nodes {
		sort.Slice(n.out, func(i, j int) bool {
			ti := g.nodes[n.out[i].TargetID].spot
			tj := g.nodes[n.out[j].TargetID].spot
			if ti.Frame != tj.Frame {
				return ti.Frame < tj.Frame
			}
			return ti.ID < tj.ID
		})
	}
	g.deriveDirectionalChange()
	for id, n := range g.nodes {
		if n.in == 0 {
			g.roots = append(g.roots, id)
		}
	}
	sort.Slice(g.roots, func(i, j int) bool { return g.roots[i] < g.roots[j] })
	return g, nil
}

// deriveDirectionalChange fills directional-change rates the input lacked.
// The predecessor of edge u->v is the unique edge into u; the rate is the
// unsigned angle between the two displacement vectors per frame elapsed on
// u->v. Nodes with zero or multiple incoming edges leave their outgoing
// rates undefined.
func (g *TrackGraph) deriveDirectionalChange() {
	for _, u := range g.nodes {
		if u.in != 1 {
			continue
		}
		p := g.nodes[u.inEdge.SourceID].spot
		for i := range u.out {
			e := &u.out[i]
			if !math.IsNaN(e.DirectionalChangeRate) {
				continue
			}
			v := g.nodes[e.TargetID].spot
			ang := angleBetween(
				u.spot.X-p.X, u.spot.Y-p.Y, u.spot.Z-p.Z,
				v.X-u.spot.X, v.Y-u.spot.Y, v.Z-u.spot.Z,
			)
			dt := v.Frame - u.spot.Frame
			if !math.IsNaN(ang) && dt > 0 {
				e.DirectionalChangeRate = ang / float64(dt)
			}
		}
	}
}

// deriveEdgeMetrics fills displacement, speed, and edge time when the input
// table did not carry them. Speed accounts for gap-closing links spanning
// more than one frame.
func deriveEdgeMetrics(e *trackmate.Edge, src, tgt trackmate.Spot) {
	if math.IsNaN(e.Displacement) {
		e.Displacement = spotDistance(src, tgt)
	}
	if math.IsNaN(e.Speed) {
		if dt := tgt.Frame - src.Frame; dt > 0 {
			e.Speed = e.Displacement / float64(dt)
		}
	}
	if math.IsNaN(e.EdgeTime) {
		e.EdgeTime = (float64(src.Frame) + float64(tgt.Frame)) / 2
	}
}

// spotDistance returns the Euclidean distance between two spot positions.
// Planar data carries z = 0, so the 3D form is exact for it.
func spotDistance(a, b trackmate.Spot) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// angleBetween returns the unsigned angle between two displacement vectors
// in radians, within [0, pi]. NaN when either vector is zero.
func angleBetween(ax, ay, az, bx, by, bz float64) float64 {
	na := math.Sqrt(ax*ax + ay*ay + az*az)
	nb := math.Sqrt(bx*bx + by*by + bz*bz)
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	cos := (ax*bx + ay*by + az*bz) / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}
