package avatar

import (
	"math"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/videosync"
)

// legacyAudio models a muted audio element that ticks on its own and has to
// be pulled back onto the video clock.
type legacyAudio struct {
	time    float64
	reseeks int
}

// track advances the local clock by dt while the video plays, then re-seeks
// it to the video position when drift exceeds the threshold or a seek just
// happened. It reports whether a re-seek occurred.
func (l *legacyAudio) track(vs videosync.State, now time.Time, dt float64, cfg Config) bool {
	if vs.IsPlaying {
		l.time += dt
	}
	want := vs.At(now)
	if math.Abs(l.time-want) <= cfg.ReseekThreshold && !vs.SeekedWithin(now, cfg.SeekWindow) {
		return false
	}
	l.time = want
	l.reseeks++
	return true
}
