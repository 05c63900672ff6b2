// Command motility-report runs lineage decomposition over cell-tracking
// exports: it discovers per-location tracking tables, splits branching tracks
// into subtracks, computes kinematic statistics, and writes the subtrack
// relations (plus optional charts, rose plots, and a SQLite mirror).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lineage-data/motility.report/internal/batch"
	"github.com/lineage-data/motility.report/internal/config"
	"github.com/lineage-data/motility.report/internal/db"
	"github.com/lineage-data/motility.report/internal/lineage"
	"github.com/lineage-data/motility.report/internal/version"
)

var (
	batchRoot   = flag.String("batch", "", "Experiment root; analyze every \"Tracking Result\" directory under it")
	folderDir   = flag.String("folder", "", "Analyze a single location folder")
	configPath  = flag.String("config", "", "JSON configuration file")
	maxSplits   = flag.Int("max-splits", lineage.DefaultMaxSplitsAllowed, "Reject tracks with more divisions than this")
	minDuration = flag.Int("min-duration", lineage.DefaultMinTrackDurationFrames, "Reject tracks spanning fewer frames than this")
	workers     = flag.Int("workers", 0, "Track workers per location (0 = one per CPU)")
	dbPath      = flag.String("db", "", "Mirror results into this SQLite database")
	charts      = flag.Bool("charts", true, "Write the motility chart report per location")
	rosePlots   = flag.Bool("rose-plots", false, "Write the trajectory rose plot per location")
	browseAddr  = flag.String("browse", "", "Serve the results browser on this address instead of analyzing")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage:
  motility-report -batch ROOT [options]     analyze every "Tracking Result" under ROOT
  motility-report -folder DIR [options]     analyze one location folder
  motility-report -browse ADDR -db PATH     serve the results browser
  motility-report migrate [args] -db PATH   manage the results database schema

Explicitly set flags override the configuration file, which overrides the
built-in defaults.

Options:
`)
	flag.PrintDefaults()
}

// settings is the resolved pipeline configuration after layering defaults,
// the config file, and explicitly set flags.
type settings struct {
	qc            lineage.QCConfig
	workers       int
	emitCharts    bool
	emitRosePlots bool
	resultsDB     string
	outputFolder  string
}

func resolveSettings(cfg *config.Config, explicit map[string]bool) settings {
	s := settings{
		qc:            cfg.QC(),
		workers:       cfg.GetWorkers(),
		emitCharts:    cfg.GetEmitCharts(),
		emitRosePlots: cfg.GetEmitRosePlots(),
		resultsDB:     cfg.GetResultsDB(),
		outputFolder:  cfg.GetOutputFolderName(),
	}
	if explicit["max-splits"] {
		s.qc.MaxSplitsAllowed = *maxSplits
	}
	if explicit["min-duration"] {
		s.qc.MinTrackDurationFrames = *minDuration
	}
	if explicit["workers"] {
		s.workers = *workers
	}
	if explicit["charts"] {
		s.emitCharts = *charts
	}
	if explicit["rose-plots"] {
		s.emitRosePlots = *rosePlots
	}
	if explicit["db"] {
		s.resultsDB = *dbPath
	}
	return s
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("motility-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	// The migrate subcommand manages the schema directly and skips the
	// pipeline configuration entirely.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		if *dbPath == "" {
			log.Fatal("migrate requires -db PATH")
		}
		db.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	s := resolveSettings(cfg, explicit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *browseAddr != "" {
		if s.resultsDB == "" {
			log.Fatal("-browse requires -db PATH (or results_db in the config file)")
		}
		if err := serveBrowser(ctx, *browseAddr, s.resultsDB); err != nil {
			log.Fatalf("results browser: %v", err)
		}
		return
	}

	if (*batchRoot == "") == (*folderDir == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -batch or -folder is required")
		flag.Usage()
		os.Exit(2)
	}

	runner := &batch.Runner{
		QC:               s.qc,
		Workers:          s.workers,
		EmitCharts:       s.emitCharts,
		EmitRosePlots:    s.emitRosePlots,
		OutputFolderName: s.outputFolder,
	}
	if s.resultsDB != "" {
		store, err := db.Open(s.resultsDB)
		if err != nil {
			log.Fatalf("open results db: %v", err)
		}
		defer store.Close()
		if err := store.MigrateUp(); err != nil {
			log.Fatalf("migrate results db: %v", err)
		}
		runner.DB = store
	}

	var (
		summary *batch.BatchSummary
		err     error
	)
	if *batchRoot != "" {
		summary, err = runner.ProcessRoot(ctx, *batchRoot)
	} else {
		summary, err = runner.ProcessFolder(ctx, *folderDir)
	}
	if err != nil {
		log.Fatalf("batch failed: %v", err)
	}

	for _, ls := range summary.Locations {
		if ls.Err != nil {
			log.Printf("location %s FAILED: %v", ls.Location.Name, ls.Err)
		}
	}
	c := summary.Counters
	log.Printf("done: %d/%d locations, %d tracks (%d rejected, %d failed), %d subtracks",
		c.LocationsTotal-c.LocationsFailed, c.LocationsTotal,
		c.TracksTotal, c.TracksRejected, c.TracksFailed, c.SubtracksTotal)
	if summary.Failed() {
		os.Exit(1)
	}
}

// serveBrowser runs the read-only inspection server until the context ends.
func serveBrowser(ctx context.Context, addr, path string) error {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.MigrateUp(); err != nil {
		return fmt.Errorf("migrate results db: %w", err)
	}

	mux := http.NewServeMux()
	store.AttachBrowserRoutes(mux)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		log.Println("shutting down results browser...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("browser shutdown error: %v", err)
		}
	}()

	log.Printf("results browser on %s (debug index at /debug/)", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
