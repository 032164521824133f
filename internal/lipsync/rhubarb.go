package lipsync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

// Rhubarb runs the rhubarb CLI. Rhubarb only reads WAV/OGG, so other
// containers are transcoded to 16 kHz mono WAV with ffmpeg first.
type Rhubarb struct {
	rhubarbPath string
	ffmpegPath  string
	recognizer  string
}

// NewRhubarb creates an extractor. recognizer is "phonetic" or "pocketSphinx".
func NewRhubarb(rhubarbPath, ffmpegPath, recognizer string) *Rhubarb {
	if recognizer == "" {
		recognizer = "phonetic"
	}
	return &Rhubarb{rhubarbPath: rhubarbPath, ffmpegPath: ffmpegPath, recognizer: recognizer}
}

// Extract transcodes audioPath when needed, runs rhubarb, and parses its JSON
// output. Intermediate files live in a scratch directory removed on return,
// so nothing but the audio itself lands next to audioPath.
func (r *Rhubarb) Extract(ctx context.Context, audioPath, transcript string) (*Track, error) {
	start := time.Now()

	scratch, err := os.MkdirTemp("", "rhubarb-*")
	if err != nil {
		return nil, fmt.Errorf("lipsync scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	wavPath, err := r.ensureWAV(ctx, audioPath, scratch)
	if err != nil {
		metrics.Errors.WithLabelValues("lipsync", "transcode").Inc()
		return nil, err
	}

	outPath := filepath.Join(scratch, "cues.json")
	args := []string{"-f", "json", "-r", r.recognizer, "-o", outPath}

	if transcript != "" {
		dialogPath := filepath.Join(scratch, "dialog.txt")
		if err = os.WriteFile(dialogPath, []byte(transcript), 0o600); err != nil {
			return nil, fmt.Errorf("write dialog file: %w", err)
		}
		args = append(args, "-d", dialogPath)
	}
	args = append(args, wavPath)

	cmd := exec.CommandContext(ctx, r.rhubarbPath, args...)
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		metrics.Errors.WithLabelValues("lipsync", "rhubarb").Inc()
		return nil, fmt.Errorf("rhubarb %s: %w: %s", filepath.Base(wavPath), runErr, tail(out, 512))
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read rhubarb output: %w", err)
	}

	track, err := ParseRhubarb(raw)
	if err != nil {
		return nil, err
	}
	track.Metadata.SoundFile = audioPath

	metrics.StageDuration.WithLabelValues("lipsync").Observe(time.Since(start).Seconds())
	return track, nil
}

func (r *Rhubarb) ensureWAV(ctx context.Context, audioPath, scratch string) (string, error) {
	if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return audioPath, nil
	}
	wavPath := filepath.Join(scratch, "input.wav")
	cmd := exec.CommandContext(ctx, r.ffmpegPath, "-y", "-loglevel", "error", "-i", audioPath, "-ac", "1", "-ar", "16000", wavPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg transcode %s: %w: %s", filepath.Base(audioPath), err, tail(out, 512))
	}
	return wavPath, nil
}

// ParseRhubarb decodes rhubarb's JSON export and normalizes the cues.
func ParseRhubarb(raw []byte) (*Track, error) {
	var track Track
	if err := json.Unmarshal(raw, &track); err != nil {
		return nil, fmt.Errorf("parse rhubarb json: %w", err)
	}
	track.MouthCues = Normalize(track.MouthCues)
	return &track, nil
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
