// Package config loads the analysis configuration file. The schema uses
// pointer fields so a partial JSON file only overrides what it names; the
// Get* methods supply defaults for everything else, and command-line flags
// override both.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lineage-data/motility.report/internal/lineage"
)

// DefaultOutputFolderName is the folder created beside the input tables for
// the per-location output relations.
const DefaultOutputFolderName = "secondary_analysis"

// Config is the root analysis configuration.
type Config struct {
	// QC thresholds
	MaxSplitsAllowed       *int `json:"max_splits_allowed,omitempty"`
	MinTrackDurationFrames *int `json:"min_track_duration_frames,omitempty"`

	// Workers bounds the per-location track worker pool; 0 means one worker
	// per CPU.
	Workers *int `json:"workers,omitempty"`

	// Optional outputs
	EmitCharts    *bool   `json:"emit_charts,omitempty"`
	EmitRosePlots *bool   `json:"emit_rose_plots,omitempty"`
	ResultsDB     *string `json:"results_db,omitempty"`

	OutputFolderName *string `json:"output_folder_name,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyConfig returns a Config with all fields unset, so every getter
// reports its default.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and stay under the max file size. Fields omitted from the JSON
// keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.MaxSplitsAllowed != nil && *c.MaxSplitsAllowed < 0 {
		return fmt.Errorf("max_splits_allowed must be non-negative, got %d", *c.MaxSplitsAllowed)
	}
	if c.MinTrackDurationFrames != nil && *c.MinTrackDurationFrames < 1 {
		return fmt.Errorf("min_track_duration_frames must be at least 1, got %d", *c.MinTrackDurationFrames)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.OutputFolderName != nil {
		name := *c.OutputFolderName
		if name == "" {
			return fmt.Errorf("output_folder_name must not be empty")
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("output_folder_name must be a bare folder name, got %q", name)
		}
	}
	return nil
}

// GetMaxSplitsAllowed returns the max_splits_allowed value or the default.
func (c *Config) GetMaxSplitsAllowed() int {
	if c.MaxSplitsAllowed == nil {
		return lineage.DefaultMaxSplitsAllowed
	}
	return *c.MaxSplitsAllowed
}

// GetMinTrackDurationFrames returns the min_track_duration_frames value or the default.
func (c *Config) GetMinTrackDurationFrames() int {
	if c.MinTrackDurationFrames == nil {
		return lineage.DefaultMinTrackDurationFrames
	}
	return *c.MinTrackDurationFrames
}

// GetWorkers returns the workers value or the default (0, one per CPU).
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetEmitCharts returns the emit_charts value or the default.
func (c *Config) GetEmitCharts() bool {
	if c.EmitCharts == nil {
		return true
	}
	return *c.EmitCharts
}

// GetEmitRosePlots returns the emit_rose_plots value or the default.
func (c *Config) GetEmitRosePlots() bool {
	if c.EmitRosePlots == nil {
		return false
	}
	return *c.EmitRosePlots
}

// GetResultsDB returns the results_db path; empty disables the results store.
func (c *Config) GetResultsDB() string {
	if c.ResultsDB == nil {
		return ""
	}
	return *c.ResultsDB
}

// GetOutputFolderName returns the output_folder_name value or the default.
func (c *Config) GetOutputFolderName() string {
	if c.OutputFolderName == nil || *c.OutputFolderName == "" {
		return DefaultOutputFolderName
	}
	return *c.OutputFolderName
}

// QC bundles the configured admission thresholds.
func (c *Config) QC() lineage.QCConfig {
	return lineage.QCConfig{
		MaxSplitsAllowed:       c.GetMaxSplitsAllowed(),
		MinTrackDurationFrames: c.GetMinTrackDurationFrames(),
	}
}
