// Package lipsync derives timed mouth-shape cues from narration audio.
//
// Cue values use the Rhubarb Lip Sync shape alphabet (A-H plus X for rest),
// the format the browser avatar consumes directly.
package lipsync

import (
	"context"
	"sort"
)

// Shape is one Rhubarb mouth shape.
type Shape string

const (
	ShapeA Shape = "A" // closed lips: P, B, M
	ShapeB Shape = "B" // slightly open, clenched teeth: K, S, T, EE
	ShapeC Shape = "C" // open: EH, AE
	ShapeD Shape = "D" // wide open: AA
	ShapeE Shape = "E" // slightly rounded: AO, ER
	ShapeF Shape = "F" // puckered: UW, OW, W
	ShapeG Shape = "G" // upper teeth on lower lip: F, V
	ShapeH Shape = "H" // tongue raised: L
	ShapeX Shape = "X" // rest
)

var validShapes = map[Shape]bool{
	ShapeA: true, ShapeB: true, ShapeC: true, ShapeD: true, ShapeE: true,
	ShapeF: true, ShapeG: true, ShapeH: true, ShapeX: true,
}

// Valid reports whether s is part of the shape alphabet.
func (s Shape) Valid() bool { return validShapes[s] }

// Cue is one mouth shape held over [Start, End] seconds from the audio start.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value Shape   `json:"value"`
}

// Metadata describes the audio a track was derived from.
type Metadata struct {
	SoundFile string  `json:"soundFile"`
	Duration  float64 `json:"duration"`
}

// Track is the lip-sync artifact attached to exactly one audio file.
type Track struct {
	Metadata  Metadata `json:"metadata"`
	MouthCues []Cue    `json:"mouthCues"`
}

// Extractor derives a Track from an audio file on disk. transcript may be
// empty; extractors that can use it get better phoneme alignment.
type Extractor interface {
	Extract(ctx context.Context, audioPath, transcript string) (*Track, error)
}

// CueAt returns the first cue whose [Start, End] contains t.
func (t *Track) CueAt(sec float64) (Cue, bool) {
	if t == nil {
		return Cue{}, false
	}
	for _, c := range t.MouthCues {
		if sec >= c.Start && sec <= c.End {
			return c, true
		}
	}
	return Cue{}, false
}

// Normalize enforces the track invariants: no negative starts, no cue with
// Start > End, unknown shapes replaced by X, cues ordered by Start.
func Normalize(cues []Cue) []Cue {
	out := make([]Cue, 0, len(cues))
	for _, c := range cues {
		if c.Start < 0 {
			c.Start = 0
		}
		if c.End < c.Start {
			c.End = c.Start
		}
		if !c.Value.Valid() {
			c.Value = ShapeX
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
