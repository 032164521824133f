package lipsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankajydv07/ai-tutor/gateway/internal/audio"
)

func assertTrackInvariants(t *testing.T, cues []Cue) {
	t.Helper()
	prev := -1.0
	for i, c := range cues {
		assert.GreaterOrEqual(t, c.Start, 0.0, "cue %d starts before 0", i)
		assert.LessOrEqual(t, c.Start, c.End, "cue %d has start > end", i)
		assert.GreaterOrEqual(t, c.Start, prev, "cue %d out of order", i)
		assert.True(t, c.Value.Valid(), "cue %d has shape %q", i, c.Value)
		prev = c.Start
	}
}

func TestNormalize_FixesBrokenCues(t *testing.T) {
	cues := Normalize([]Cue{
		{Start: 0.5, End: 0.4, Value: ShapeB},
		{Start: -0.2, End: 0.1, Value: ShapeA},
		{Start: 0.3, End: 0.5, Value: "Q"},
	})

	require.Len(t, cues, 3)
	assertTrackInvariants(t, cues)
	assert.Equal(t, 0.0, cues[0].Start)
	assert.Equal(t, ShapeX, cues[1].Value)
	assert.Equal(t, cues[2].Start, cues[2].End)
}

func TestParseRhubarb(t *testing.T) {
	raw := []byte(`{
		"metadata": {"soundFile": "/tmp/part_0.wav", "duration": 1.2},
		"mouthCues": [
			{"start": 0.00, "end": 0.05, "value": "X"},
			{"start": 0.05, "end": 0.27, "value": "D"},
			{"start": 0.27, "end": 1.20, "value": "X"}
		]
	}`)

	track, err := ParseRhubarb(raw)
	require.NoError(t, err)
	assert.Equal(t, 1.2, track.Metadata.Duration)
	require.Len(t, track.MouthCues, 3)
	assertTrackInvariants(t, track.MouthCues)

	c, ok := track.CueAt(0.1)
	require.True(t, ok)
	assert.Equal(t, ShapeD, c.Value)

	_, ok = track.CueAt(5)
	assert.False(t, ok)
}

func TestParseRhubarb_Malformed(t *testing.T) {
	_, err := ParseRhubarb([]byte(`{"mouthCues": [`))
	assert.Error(t, err)
}

func TestCueAt_FirstMatchWins(t *testing.T) {
	track := &Track{MouthCues: []Cue{
		{Start: 0, End: 0.5, Value: ShapeA},
		{Start: 0.5, End: 1, Value: ShapeB},
	}}
	c, ok := track.CueAt(0.5)
	require.True(t, ok)
	assert.Equal(t, ShapeA, c.Value)
}

func TestEstimate_ScalesToDuration(t *testing.T) {
	cues := Estimate("Gravity pulls, things fall.", 2*time.Second)

	require.NotEmpty(t, cues)
	assertTrackInvariants(t, cues)
	assert.InDelta(t, 2.0, cues[len(cues)-1].End, 1e-6)
	for i := 1; i < len(cues); i++ {
		assert.NotEqual(t, cues[i-1].Value, cues[i].Value, "adjacent cues should be merged")
	}
}

func TestEstimate_Empty(t *testing.T) {
	assert.Empty(t, Estimate("   ", 0))

	cues := Estimate("", time.Second)
	require.Len(t, cues, 1)
	assert.Equal(t, ShapeX, cues[0].Value)
}

func TestEstimator_ExtractWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.wav")
	require.NoError(t, os.WriteFile(path, audio.Silence(time.Second, 16000), 0o644))

	track, err := NewEstimator().Extract(context.Background(), path, "Hello there")
	require.NoError(t, err)
	assert.Equal(t, path, track.Metadata.SoundFile)
	assert.InDelta(t, 1.0, track.Metadata.Duration, 1e-6)
	assert.NotEmpty(t, track.MouthCues)
	assertTrackInvariants(t, track.MouthCues)
}

func TestEstimator_MissingFile(t *testing.T) {
	_, err := NewEstimator().Extract(context.Background(), "/nonexistent/part.wav", "hi")
	assert.Error(t, err)
}
