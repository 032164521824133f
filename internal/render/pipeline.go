package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
	"github.com/pankajydv07/ai-tutor/gateway/internal/session"
	"github.com/pankajydv07/ai-tutor/gateway/internal/trace"
)

// ErrNothingRendered means every part of a job failed to render.
var ErrNothingRendered = errors.New("no part rendered")

// Scene is one part's script and, optionally, its own narration audio.
type Scene struct {
	Index     int
	Script    string
	AudioPath string
}

// Job is the background work for one video turn.
type Job struct {
	ID        string
	SessionID string
	TurnID    string
	Scenes    []Scene
	Enqueued  time.Time
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Worker Worker
	Store  session.Store
	Tracer *trace.Tracer
	// Parallel bounds concurrent scene renders per job; <=0 means one at a time.
	Parallel int
	// VideoURLPrefix, when set, replaces the worker's URL with
	// <prefix>/<file name> so clients fetch videos through the gateway.
	VideoURLPrefix string
}

// Pipeline renders every scene of a job, combines the survivors in their
// original order and writes the result to the session store.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline creates a render pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	return &Pipeline{cfg: cfg}
}

// Run executes job. Failed scenes are dropped; a failed combine or a job
// with no surviving scene writes nothing to the store.
func (p *Pipeline) Run(ctx context.Context, job Job) (*session.Record, error) {
	metrics.RenderJobsActive.Inc()
	defer metrics.RenderJobsActive.Dec()
	start := time.Now()
	log := slog.With("session_id", job.SessionID, "job_id", job.ID)

	paths := p.renderScenes(ctx, job, log)
	if len(paths) == 0 {
		log.Warn("render_nothing_survived", "scenes", len(job.Scenes))
		metrics.Errors.WithLabelValues("render", "all_failed").Inc()
		return nil, ErrNothingRendered
	}

	combineStart := time.Now()
	video, err := p.cfg.Worker.Combine(ctx, paths, SafeID(job.SessionID))
	metrics.StageDuration.WithLabelValues("combine").Observe(time.Since(combineStart).Seconds())
	p.cfg.Tracer.Stage(job.TurnID, "combine", combineStart, fmt.Sprintf("%d clips", len(paths)), pathOf(video), err)
	if err != nil {
		log.Error("combine_failed", "clips", len(paths), "error", err)
		metrics.Errors.WithLabelValues("combine", "worker").Inc()
		return nil, fmt.Errorf("combine %s: %w", job.SessionID, err)
	}

	rec := session.Record{
		VideoURL:  p.videoURL(video),
		VideoPath: video.Path,
		Timestamp: time.Now(),
	}
	if err = p.cfg.Store.Put(ctx, job.SessionID, rec); err != nil {
		log.Error("session_write_failed", "error", err)
		metrics.Errors.WithLabelValues("session", "put").Inc()
		return nil, fmt.Errorf("store %s: %w", job.SessionID, err)
	}

	log.Info("render_done",
		"clips", len(paths),
		"scenes", len(job.Scenes),
		"video_url", rec.VideoURL,
		"ms", time.Since(start).Milliseconds(),
		"queued_ms", start.Sub(job.Enqueued).Milliseconds(),
	)
	return &rec, nil
}

// renderScenes renders concurrently and returns the surviving clip paths in
// scene order.
func (p *Pipeline) renderScenes(ctx context.Context, job Job, log *slog.Logger) []string {
	results := make([]string, len(job.Scenes))
	var g errgroup.Group
	g.SetLimit(p.cfg.Parallel)

	for i, sc := range job.Scenes {
		g.Go(func() error {
			messageID := fmt.Sprintf("%s_part_%d", SafeID(job.SessionID), sc.Index+1)
			t0 := time.Now()
			video, err := p.cfg.Worker.Generate(ctx, sc.Script, messageID, sc.AudioPath)
			metrics.StageDuration.WithLabelValues("render").Observe(time.Since(t0).Seconds())
			p.cfg.Tracer.Stage(job.TurnID, "render", t0, messageID, pathOf(video), err)
			if err != nil {
				log.Warn("render_part_failed", "part", sc.Index+1, "error", err)
				metrics.RenderParts.WithLabelValues("failed").Inc()
				return nil
			}
			metrics.RenderParts.WithLabelValues("ok").Inc()
			results[i] = video.Path
			return nil
		})
	}
	_ = g.Wait()

	paths := make([]string, 0, len(results))
	for _, clip := range results {
		if clip != "" {
			paths = append(paths, clip)
		}
	}
	return paths
}

func (p *Pipeline) videoURL(v *Video) string {
	if p.cfg.VideoURLPrefix == "" {
		return v.URL
	}
	return path.Join(p.cfg.VideoURLPrefix, filepath.Base(v.Path))
}

// SafeID maps an id onto [A-Za-z0-9_-]; the worker builds file names from it.
func SafeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func pathOf(v *Video) string {
	if v == nil {
		return ""
	}
	return v.Path
}
