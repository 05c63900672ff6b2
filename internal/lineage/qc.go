package lineage

import (
	"fmt"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

// Default QC thresholds. Tracks dividing more often than a cell plausibly
// can within one movie are tracker artifacts; very short tracks carry too
// few frames for meaningful motility statistics.
const (
	DefaultMaxSplitsAllowed       = 3
	DefaultMinTrackDurationFrames = 20
)

// QCConfig holds the track admission thresholds. Thresholds travel with the
// caller; nothing in the engine reads ambient configuration.
type QCConfig struct {
	// MaxSplitsAllowed is the largest division count a track may carry and
	// still be decomposed. Inclusive.
	MaxSplitsAllowed int

	// MinTrackDurationFrames is the smallest inclusive frame count a track
	// may span and still be decomposed.
	MinTrackDurationFrames int
}

// DefaultQCConfig returns the thresholds used when no configuration is
// supplied.
func DefaultQCConfig() QCConfig {
	return QCConfig{
		MaxSplitsAllowed:       DefaultMaxSplitsAllowed,
		MinTrackDurationFrames: DefaultMinTrackDurationFrames,
	}
}

// Admit decides whether a track enters lineage decomposition. A rejected
// track is skipped whole, not errored: the returned reason feeds the skip
// report. Boundary values are accepted on both thresholds.
func (c QCConfig) Admit(s trackmate.TrackSummary) (bool, string) {
	if s.NumberSplits > c.MaxSplitsAllowed {
		return false, fmt.Sprintf("%d splits exceeds the allowed %d", s.NumberSplits, c.MaxSplitsAllowed)
	}
	if d := s.Duration(); d < c.MinTrackDurationFrames {
		return false, fmt.Sprintf("duration %d frames is below the minimum %d", d, c.MinTrackDurationFrames)
	}
	return true, ""
}
