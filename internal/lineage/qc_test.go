package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lineage-data/motility.report/internal/trackmate"
)

func TestQCAdmit(t *testing.T) {
	t.Parallel()

	qc := QCConfig{MaxSplitsAllowed: 3, MinTrackDurationFrames: 20}

	summary := func(splits, start, stop int) trackmate.TrackSummary {
		return trackmate.TrackSummary{TrackID: 1, NumberSplits: splits, StartFrame: start, StopFrame: stop}
	}

	cases := []struct {
		name   string
		s      trackmate.TrackSummary
		admit  bool
		reason string
	}{
		{name: "clean track", s: summary(0, 0, 99), admit: true},
		{name: "splits at the limit", s: summary(3, 0, 99), admit: true},
		{name: "one split too many", s: summary(4, 0, 99), admit: false, reason: "4 splits exceeds the allowed 3"},
		{name: "duration at the limit", s: summary(0, 10, 29), admit: true},
		{name: "one frame short", s: summary(0, 10, 28), admit: false, reason: "duration 19 frames is below the minimum 20"},
		{name: "single frame track", s: summary(0, 5, 5), admit: false, reason: "duration 1 frames is below the minimum 20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ok, reason := qc.Admit(tc.s)
			assert.Equal(t, tc.admit, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestDefaultQCConfig(t *testing.T) {
	t.Parallel()

	qc := DefaultQCConfig()
	assert.Equal(t, 3, qc.MaxSplitsAllowed)
	assert.Equal(t, 20, qc.MinTrackDurationFrames)
}
