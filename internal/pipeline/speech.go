package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/lipsync"
)

// Narration is one synthesized audio file with its lip-sync track.
type Narration struct {
	Text      string
	AudioPath string // server-local, absolute
	AudioURL  string // servable path under the audio prefix
	Audio     []byte
	LipSync   *lipsync.Track
	TTSMs     float64
	LipSyncMs float64
}

// SpeechConfig configures the speech pipeline.
type SpeechConfig struct {
	TTS       *TTSRouter
	Engine    string
	Options   TTSOptions
	Extractor lipsync.Extractor
	AudioDir  string
	URLPrefix string // e.g. "/audio"
}

// Speech turns text into an audio file on disk and derives its lip-sync track.
// Output files are keyed by name, so repeating a call overwrites the same file.
type Speech struct {
	cfg SpeechConfig
}

// NewSpeech creates the speech pipeline, creating AudioDir if needed.
func NewSpeech(cfg SpeechConfig) (*Speech, error) {
	if cfg.TTS == nil || cfg.Extractor == nil {
		return nil, fmt.Errorf("speech: tts and extractor required")
	}
	abs, err := filepath.Abs(cfg.AudioDir)
	if err != nil {
		return nil, fmt.Errorf("resolve audio dir: %w", err)
	}
	if err = os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	cfg.AudioDir = abs
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/audio"
	}
	return &Speech{cfg: cfg}, nil
}

// Synthesize writes the audio for text to <AudioDir>/<name><ext>.
func (s *Speech) Synthesize(ctx context.Context, text, name string) (*Narration, error) {
	res, err := s.cfg.TTS.Synthesize(ctx, text, s.cfg.Engine, s.cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("synthesize %s: %w", name, err)
	}

	file := name + res.Ext
	full := filepath.Join(s.cfg.AudioDir, file)
	if err = os.WriteFile(full, res.Audio, 0o644); err != nil {
		return nil, fmt.Errorf("write audio %s: %w", file, err)
	}

	return &Narration{
		Text:      text,
		AudioPath: full,
		AudioURL:  path.Join(s.cfg.URLPrefix, file),
		Audio:     res.Audio,
		TTSMs:     res.LatencyMs,
	}, nil
}

// ExtractVisemes attaches a lip-sync track to a synthesized narration.
func (s *Speech) ExtractVisemes(ctx context.Context, n *Narration) error {
	start := time.Now()
	track, err := s.cfg.Extractor.Extract(ctx, n.AudioPath, n.Text)
	if err != nil {
		return fmt.Errorf("extract visemes %s: %w", filepath.Base(n.AudioPath), err)
	}
	n.LipSync = track
	n.LipSyncMs = float64(time.Since(start).Milliseconds())
	return nil
}

// Narrate runs Synthesize then ExtractVisemes.
func (s *Speech) Narrate(ctx context.Context, text, name string) (*Narration, error) {
	n, err := s.Synthesize(ctx, text, name)
	if err != nil {
		return nil, err
	}
	if err = s.ExtractVisemes(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
