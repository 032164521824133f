package lipsync

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/audio"
)

// Estimator approximates mouth cues from the transcript alone, spreading
// letters over the audio length. Used when the rhubarb binary is not installed.
type Estimator struct{}

// NewEstimator returns a transcript-timing extractor.
func NewEstimator() *Estimator { return &Estimator{} }

// Extract reads the audio length from WAV files; other containers use the
// natural speaking rate of the transcript.
func (e *Estimator) Extract(_ context.Context, audioPath, transcript string) (*Track, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	d, err := audio.Duration(data)
	if err != nil {
		d = 0
	}
	cues := Estimate(transcript, d)
	dur := d.Seconds()
	if dur == 0 && len(cues) > 0 {
		dur = cues[len(cues)-1].End
	}
	return &Track{
		Metadata:  Metadata{SoundFile: audioPath, Duration: dur},
		MouthCues: cues,
	}, nil
}

// per-letter durations in seconds
const (
	consonantSec = 0.06
	fricativeSec = 0.08
	vowelSec     = 0.10
	wordGapSec   = 0.08
	clauseGapSec = 0.10
	sentenceSec  = 0.15
)

var letterShapes = map[byte]Shape{
	'p': ShapeA, 'b': ShapeA, 'm': ShapeA,
	'k': ShapeB, 'g': ShapeB, 's': ShapeB, 'z': ShapeB, 't': ShapeB, 'd': ShapeB,
	'c': ShapeB, 'x': ShapeB, 'q': ShapeB, 'j': ShapeB, 'y': ShapeB, 'n': ShapeB, 'i': ShapeB,
	'e': ShapeC, 'h': ShapeC,
	'a': ShapeD,
	'o': ShapeE, 'r': ShapeE,
	'u': ShapeF, 'w': ShapeF,
	'f': ShapeG, 'v': ShapeG,
	'l': ShapeH,
}

var digraphShapes = map[string]Shape{"th": ShapeB, "ch": ShapeB, "sh": ShapeB, "oo": ShapeF}

// Estimate builds contiguous cues for text. When d is positive the cue
// timings are scaled so the last cue ends at d.
func Estimate(text string, d time.Duration) []Cue {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		if d <= 0 {
			return []Cue{}
		}
		return []Cue{{Start: 0, End: d.Seconds(), Value: ShapeX}}
	}

	var cues []Cue
	cur := 0.0
	push := func(s Shape, length float64) {
		if n := len(cues); n > 0 && cues[n-1].Value == s {
			cues[n-1].End += length
		} else {
			cues = append(cues, Cue{Start: cur, End: cur + length, Value: s})
		}
		cur += length
	}

	for i := 0; i < len(lower); i++ {
		ch := lower[i]
		switch {
		case ch == ' ' || ch == '\n' || ch == '\t':
			push(ShapeX, wordGapSec)
			continue
		case ch == '.' || ch == '!' || ch == '?':
			push(ShapeX, sentenceSec)
			continue
		case ch == ',' || ch == ';' || ch == ':':
			push(ShapeX, clauseGapSec)
			continue
		}

		if i+1 < len(lower) {
			if s, ok := digraphShapes[lower[i:i+2]]; ok {
				push(s, fricativeSec)
				i++
				continue
			}
		}

		s, ok := letterShapes[ch]
		if !ok {
			continue
		}
		push(s, letterSec(ch))
	}

	if len(cues) == 0 {
		return []Cue{}
	}
	if d > 0 && cur > 0 {
		scale := d.Seconds() / cur
		for i := range cues {
			cues[i].Start *= scale
			cues[i].End *= scale
		}
	}
	return Normalize(cues)
}

func letterSec(ch byte) float64 {
	switch ch {
	case 'a', 'e', 'i', 'o', 'u':
		return vowelSec
	case 's', 'z', 'f', 'v':
		return fricativeSec
	}
	return consonantSec
}
