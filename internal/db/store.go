package db

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/lineage-data/motility.report/internal/lineage"
)

// StoreTrackResult mirrors one analyzed track into the three subtrack
// relations inside a single transaction. Rows are keyed by run and location,
// and upserted, so re-running a batch under the same run id is idempotent.
func (db *DB) StoreTrackResult(ctx context.Context, runID, location string, res *lineage.TrackResult) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store transaction: %w", err)
	}
	defer tx.Rollback()

	statsStmt, err := tx.PrepareContext(ctx, `INSERT INTO subtrack_stats (
			run_id, location, subtrack_id, track_id, subtrack_index, generation,
			start_frame, end_frame, duration, number_spots, number_edges,
			start_x, start_y, start_z, end_x, end_y, end_z, mean_x, mean_y, mean_z,
			net_displacement, total_distance, max_distance,
			mean_speed, min_speed, max_speed, median_speed, std_speed,
			confinement_ratio, mean_straight_line_speed, mean_directional_change_rate,
			outreach_ratio, tortuosity, mean_quality, mean_intensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, location, subtrack_id) DO UPDATE SET
			track_id = excluded.track_id,
			subtrack_index = excluded.subtrack_index,
			generation = excluded.generation,
			start_frame = excluded.start_frame,
			end_frame = excluded.end_frame,
			duration = excluded.duration,
			number_spots = excluded.number_spots,
			number_edges = excluded.number_edges,
			start_x = excluded.start_x, start_y = excluded.start_y, start_z = excluded.start_z,
			end_x = excluded.end_x, end_y = excluded.end_y, end_z = excluded.end_z,
			mean_x = excluded.mean_x, mean_y = excluded.mean_y, mean_z = excluded.mean_z,
			net_displacement = excluded.net_displacement,
			total_distance = excluded.total_distance,
			max_distance = excluded.max_distance,
			mean_speed = excluded.mean_speed,
			min_speed = excluded.min_speed,
			max_speed = excluded.max_speed,
			median_speed = excluded.median_speed,
			std_speed = excluded.std_speed,
			confinement_ratio = excluded.confinement_ratio,
			mean_straight_line_speed = excluded.mean_straight_line_speed,
			mean_directional_change_rate = excluded.mean_directional_change_rate,
			outreach_ratio = excluded.outreach_ratio,
			tortuosity = excluded.tortuosity,
			mean_quality = excluded.mean_quality,
			mean_intensity = excluded.mean_intensity`)
	if err != nil {
		return fmt.Errorf("prepare stats upsert: %w", err)
	}
	defer statsStmt.Close()

	lineageStmt, err := tx.PrepareContext(ctx, `INSERT INTO subtrack_lineage (
			run_id, location, subtrack_id, track_id, subtrack_index,
			parent_subtrack_id, generation, split_frame,
			start_frame, end_frame, duration, number_spots, path_from_root
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, location, subtrack_id) DO UPDATE SET
			track_id = excluded.track_id,
			subtrack_index = excluded.subtrack_index,
			parent_subtrack_id = excluded.parent_subtrack_id,
			generation = excluded.generation,
			split_frame = excluded.split_frame,
			start_frame = excluded.start_frame,
			end_frame = excluded.end_frame,
			duration = excluded.duration,
			number_spots = excluded.number_spots,
			path_from_root = excluded.path_from_root`)
	if err != nil {
		return fmt.Errorf("prepare lineage upsert: %w", err)
	}
	defer lineageStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO subtrack_edges (
			run_id, location, subtrack_id, track_id,
			spot_source_id, spot_target_id, source_frame, target_frame,
			displacement, speed, directional_change_rate, edge_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, location, spot_source_id, spot_target_id) DO UPDATE SET
			subtrack_id = excluded.subtrack_id,
			track_id = excluded.track_id,
			source_frame = excluded.source_frame,
			target_frame = excluded.target_frame,
			displacement = excluded.displacement,
			speed = excluded.speed,
			directional_change_rate = excluded.directional_change_rate,
			edge_time = excluded.edge_time`)
	if err != nil {
		return fmt.Errorf("prepare edge upsert: %w", err)
	}
	defer edgeStmt.Close()

	for i, sub := range res.Tree.Subtracks {
		st := res.Stats[i]
		intensity, err := intensityJSON(st.MeanIntensity)
		if err != nil {
			return fmt.Errorf("encode intensity for %s: %w", st.SubtrackID, err)
		}
		if _, err := statsStmt.ExecContext(ctx,
			runID, location, st.SubtrackID, st.TrackID, st.SubtrackIndex, st.Generation,
			st.StartFrame, st.EndFrame, st.Duration, st.NumberSpots, st.NumberEdges,
			nullFloat(st.StartX), nullFloat(st.StartY), nullFloat(st.StartZ),
			nullFloat(st.EndX), nullFloat(st.EndY), nullFloat(st.EndZ),
			nullFloat(st.MeanX), nullFloat(st.MeanY), nullFloat(st.MeanZ),
			nullFloat(st.NetDisplacement), nullFloat(st.TotalDistance), nullFloat(st.MaxDistance),
			nullFloat(st.SpeedMean), nullFloat(st.SpeedMin), nullFloat(st.SpeedMax),
			nullFloat(st.SpeedMedian), nullFloat(st.SpeedStd),
			nullFloat(st.ConfinementRatio), nullFloat(st.MeanStraightLineSpeed),
			nullFloat(st.MeanDirectionalChangeRate), nullFloat(st.OutreachRatio),
			nullFloat(st.Tortuosity), nullFloat(st.MeanQuality), intensity,
		); err != nil {
			return fmt.Errorf("upsert stats for %s: %w", st.SubtrackID, err)
		}

		if _, err := lineageStmt.ExecContext(ctx,
			runID, location, sub.ID(), sub.TrackID, sub.Index,
			nullString(sub.ParentID()), sub.Generation, nullSplitFrame(sub.SplitFrame),
			sub.StartFrame(), sub.EndFrame(), sub.Duration(), len(sub.Spots), pathString(sub),
		); err != nil {
			return fmt.Errorf("upsert lineage for %s: %w", sub.ID(), err)
		}

		if d := sub.DivisionEdge; d != nil {
			if _, err := edgeStmt.ExecContext(ctx,
				runID, location, sub.ID(), sub.TrackID,
				d.SourceID, d.TargetID, sub.SplitFrame, sub.Spots[0].Frame,
				nullFloat(d.Displacement), nullFloat(d.Speed),
				nullFloat(d.DirectionalChangeRate), nullFloat(d.EdgeTime),
			); err != nil {
				return fmt.Errorf("upsert division edge for %s: %w", sub.ID(), err)
			}
		}
		for j, e := range sub.Edges {
			if _, err := edgeStmt.ExecContext(ctx,
				runID, location, sub.ID(), sub.TrackID,
				e.SourceID, e.TargetID, sub.Spots[j].Frame, sub.Spots[j+1].Frame,
				nullFloat(e.Displacement), nullFloat(e.Speed),
				nullFloat(e.DirectionalChangeRate), nullFloat(e.EdgeTime),
			); err != nil {
				return fmt.Errorf("upsert edge %d->%d for %s: %w", e.SourceID, e.TargetID, sub.ID(), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store transaction: %w", err)
	}
	return nil
}

// nullFloat maps undefined metrics to NULL instead of a NaN literal, which
// SQLite cannot store.
func nullFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullSplitFrame(frame int) interface{} {
	if frame < 0 {
		return nil
	}
	return frame
}

// intensityJSON encodes per-channel mean intensities as a JSON array, with
// null elements for undefined channels. Empty input stores NULL.
func intensityJSON(values []float64) (interface{}, error) {
	if len(values) == 0 {
		return nil, nil
	}
	arr := make([]interface{}, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			arr[i] = nil
		} else {
			arr[i] = v
		}
	}
	b, err := json.Marshal(arr)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// pathString joins the path-from-root indices the same way the CSV emitter
// does, so the two sinks stay comparable.
func pathString(sub *lineage.Subtrack) string {
	s := ""
	for i, idx := range sub.PathFromRoot {
		if i > 0 {
			s += "/"
		}
		s += fmt.Sprintf("%d", idx)
	}
	return s
}
