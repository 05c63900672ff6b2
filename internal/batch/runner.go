package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/lineage-data/motility.report/internal/config"
	"github.com/lineage-data/motility.report/internal/db"
	"github.com/lineage-data/motility.report/internal/lineage"
	"github.com/lineage-data/motility.report/internal/pipelog"
	"github.com/lineage-data/motility.report/internal/report"
	"github.com/lineage-data/motility.report/internal/trackmate"
)

// Runner holds the settings for one batch of lineage analysis.
type Runner struct {
	QC lineage.QCConfig

	// Workers bounds the per-location track pool; 0 means one per CPU.
	Workers int

	EmitCharts    bool
	EmitRosePlots bool

	// OutputFolderName is created inside each location directory; empty means
	// the configuration default.
	OutputFolderName string

	// DB, when set, receives a mirror of every emitted row plus the run
	// lifecycle record.
	DB *db.DB

	// RunID keys mirrored rows. ProcessRoot and ProcessFolder set it when DB
	// is present.
	RunID string
}

// TrackFailure records one track that passed QC but could not be analyzed.
type TrackFailure struct {
	TrackID int64
	Reason  string
}

// LocationResult is the outcome of analyzing one location.
type LocationResult struct {
	Location Location

	TracksTotal    int
	TracksAccepted int
	TracksRejected int
	TracksFailed   int
	Subtracks      int

	// Results holds the accepted tracks in ascending track id order.
	Results  []*lineage.TrackResult
	Channels int
	Failures []TrackFailure

	Tables     report.TablePaths
	ChartsPath string
	RosePath   string
}

// LocationStatus is one location's line in the batch summary.
type LocationStatus struct {
	Location Location
	Err      error

	TracksTotal    int
	TracksAccepted int
	TracksRejected int
	TracksFailed   int
	Subtracks      int
}

// BatchSummary reports a whole run.
type BatchSummary struct {
	Root      string
	Locations []LocationStatus
	Counters  db.RunCounters
}

// Failed reports whether any location failed.
func (s *BatchSummary) Failed() bool {
	return s.Counters.LocationsFailed > 0
}

func (r *Runner) workerCount() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.NumCPU()
}

func (r *Runner) outputFolder() string {
	if r.OutputFolderName != "" {
		return r.OutputFolderName
	}
	return config.DefaultOutputFolderName
}

// trackSlot is one track's outcome from the map phase. Exactly one field is
// set for a processed track.
type trackSlot struct {
	result   *lineage.TrackResult
	rejected string
	err      error
}

func (r *Runner) analyzeOne(tables *trackmate.Tables, id int64) trackSlot {
	summary, ok := tables.Summary(id)
	if !ok {
		return trackSlot{err: fmt.Errorf("track %d missing from track table", id)}
	}
	if admit, reason := r.QC.Admit(summary); !admit {
		return trackSlot{rejected: reason}
	}
	res, err := lineage.AnalyzeTrack(id, tables.SpotsForTrack(id), tables.EdgesForTrack(id))
	if err != nil {
		return trackSlot{err: err}
	}
	return trackSlot{result: res}
}

// analyzeTracks runs the map phase: a bounded pool writing one slot per
// track. Cancellation stops dispatch; in-flight tracks finish.
func (r *Runner) analyzeTracks(ctx context.Context, tables *trackmate.Tables, ids []int64) []trackSlot {
	slots := make([]trackSlot, len(ids))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workerCount(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = r.analyzeOne(tables, ids[i])
			}
		}()
	}
feed:
	for i := range ids {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return slots
}

// ProcessLocation analyzes one location end to end: table discovery and
// parsing, QC, decomposition and statistics per track, then table and report
// emission. Per-track failures are logged and counted; an error return means
// the location itself failed.
func (r *Runner) ProcessLocation(ctx context.Context, loc Location) (*LocationResult, error) {
	set, err := trackmate.FindTableSet(loc.Dir)
	if err != nil {
		return nil, err
	}
	tables, err := set.Read()
	if err != nil {
		return nil, err
	}

	ids := tables.TrackIDs()
	slots := r.analyzeTracks(ctx, tables, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &LocationResult{
		Location:    loc,
		TracksTotal: len(ids),
		Channels:    tables.IntensityChannels,
	}
	for i, id := range ids {
		s := slots[i]
		switch {
		case s.rejected != "":
			res.TracksRejected++
			pipelog.Logf("[%s] track %d rejected: %s", loc.Name, id, s.rejected)
		case s.err != nil:
			res.TracksFailed++
			res.Failures = append(res.Failures, TrackFailure{TrackID: id, Reason: s.err.Error()})
			pipelog.Logf("[%s] track %d failed: %v", loc.Name, id, s.err)
		default:
			res.TracksAccepted++
			res.Subtracks += len(s.result.Tree.Subtracks)
			res.Results = append(res.Results, s.result)
		}
	}

	outDir := filepath.Join(loc.Dir, r.outputFolder())
	paths, err := report.WriteLocationTables(outDir, set.Base, res.Results, res.Channels)
	if err != nil {
		return nil, fmt.Errorf("write tables for %s: %w", loc.Name, err)
	}
	res.Tables = paths

	if r.EmitCharts {
		p, err := report.WriteMotilityCharts(outDir, set.Base, res.Results)
		if err != nil {
			return nil, fmt.Errorf("write charts for %s: %w", loc.Name, err)
		}
		res.ChartsPath = p
	}
	if r.EmitRosePlots {
		p, err := report.WriteRosePlot(outDir, set.Base, res.Results)
		if err != nil {
			return nil, fmt.Errorf("write rose plot for %s: %w", loc.Name, err)
		}
		res.RosePath = p
	}

	if r.DB != nil && r.RunID != "" {
		for _, tr := range res.Results {
			if err := r.DB.StoreTrackResult(ctx, r.RunID, loc.Name, tr); err != nil {
				return nil, fmt.Errorf("mirror track %d: %w", tr.Tree.TrackID, err)
			}
		}
	}

	pipelog.Logf("[%s] %d tracks: %d accepted, %d rejected, %d failed; %d subtracks",
		loc.Name, res.TracksTotal, res.TracksAccepted, res.TracksRejected, res.TracksFailed, res.Subtracks)
	return res, nil
}

// ProcessRoot analyzes every tracking-result directory under root.
func (r *Runner) ProcessRoot(ctx context.Context, root string) (*BatchSummary, error) {
	locs, err := FindLocations(root)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("no %q directories under %s", TrackingResultDirName, root)
	}
	return r.process(ctx, root, locs)
}

// ProcessFolder analyzes a single location directory.
func (r *Runner) ProcessFolder(ctx context.Context, dir string) (*BatchSummary, error) {
	return r.process(ctx, dir, []Location{LocationForDir(dir)})
}

func (r *Runner) process(ctx context.Context, root string, locs []Location) (*BatchSummary, error) {
	if r.DB != nil {
		runID, err := r.DB.StartRun(ctx, root, r.QC)
		if err != nil {
			return nil, fmt.Errorf("record batch run: %w", err)
		}
		r.RunID = runID
		pipelog.Logf("batch run %s", runID)
	}

	summary := &BatchSummary{Root: root}
	summary.Counters.LocationsTotal = len(locs)
	for i, loc := range locs {
		if err := ctx.Err(); err != nil {
			r.finishRun(summary, err)
			return summary, err
		}
		pipelog.Logf("[%d/%d] %s", i+1, len(locs), loc.Name)

		res, err := r.ProcessLocation(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				r.finishRun(summary, ctx.Err())
				return summary, ctx.Err()
			}
			summary.Counters.LocationsFailed++
			summary.Locations = append(summary.Locations, LocationStatus{Location: loc, Err: err})
			pipelog.Logf("[%s] location failed: %v", loc.Name, err)
			continue
		}

		summary.Counters.TracksTotal += res.TracksTotal
		summary.Counters.TracksRejected += res.TracksRejected
		summary.Counters.TracksFailed += res.TracksFailed
		summary.Counters.SubtracksTotal += res.Subtracks
		summary.Locations = append(summary.Locations, LocationStatus{
			Location:       loc,
			TracksTotal:    res.TracksTotal,
			TracksAccepted: res.TracksAccepted,
			TracksRejected: res.TracksRejected,
			TracksFailed:   res.TracksFailed,
			Subtracks:      res.Subtracks,
		})
	}

	r.finishRun(summary, nil)
	return summary, nil
}

// finishRun closes the lifecycle record. It uses a fresh context so the
// final write still lands after a cancellation.
func (r *Runner) finishRun(summary *BatchSummary, cause error) {
	if r.DB == nil || r.RunID == "" {
		return
	}
	if cause != nil {
		if err := r.DB.FailRun(context.Background(), r.RunID, cause.Error()); err != nil {
			pipelog.Logf("record run failure: %v", err)
		}
		return
	}
	if err := r.DB.CompleteRun(context.Background(), r.RunID, summary.Counters); err != nil {
		pipelog.Logf("record run completion: %v", err)
	}
}
