package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
	"github.com/pankajydv07/ai-tutor/gateway/internal/pipeline"
	"github.com/pankajydv07/ai-tutor/gateway/internal/prompts"
	"github.com/pankajydv07/ai-tutor/gateway/internal/render"
	"github.com/pankajydv07/ai-tutor/gateway/internal/trace"
)

// Turn outcomes, used as the metrics label and trace status.
const (
	OutcomeOK            = "ok"
	OutcomeRepaired      = "repaired"
	OutcomeGreeting      = "greeting"
	OutcomeNoCredentials = "no_credentials"
	OutcomeProviderError = "provider_error"
	OutcomeSubstituted   = "substituted"
	OutcomeAudioError    = "audio_error"
)

// Narrator produces audio files, with or without a lip-sync track.
type Narrator interface {
	Synthesize(ctx context.Context, text, name string) (*pipeline.Narration, error)
	Narrate(ctx context.Context, text, name string) (*pipeline.Narration, error)
}

// Scheduler accepts background render jobs without blocking.
type Scheduler interface {
	Submit(job render.Job) error
}

// Config wires a Processor.
type Config struct {
	LLM    pipeline.CompletionProvider
	Speech Narrator
	// Render may be nil, in which case video turns never schedule a render.
	Render Scheduler
	Tracer *trace.Tracer

	Model     string
	MaxTokens int
	// CredentialsOK is false when no usable model or speech backend is
	// configured; every turn then answers with setup instructions.
	CredentialsOK bool
	// Parallel bounds concurrent per-part synthesis; <=0 means 3.
	Parallel int
}

// Request is one user turn.
type Request struct {
	Message   string
	Mode      Mode
	SessionID string
}

// Result is a processed turn. Parts always holds 1-5 parts.
type Result struct {
	SessionID       string
	TurnID          string
	Mode            Mode
	Parts           []Part
	VideoGenerating bool
	Outcome         string
}

// Processor turns requests into hydrated parts.
type Processor struct {
	cfg Config
}

// NewProcessor creates a turn processor.
func NewProcessor(cfg Config) *Processor {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 3
	}
	return &Processor{cfg: cfg}
}

// Process runs one turn. It only fails when ctx ends; every model, parse
// and speech failure resolves to a canned part set instead.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	mode := req.Mode
	if mode != ModeVideo {
		mode = ModePlain
	}
	res := &Result{SessionID: req.SessionID, Mode: mode}
	if res.SessionID == "" {
		res.SessionID = uuid.NewString()
	}
	text := strings.TrimSpace(req.Message)
	res.TurnID = p.cfg.Tracer.StartTurn(res.SessionID, string(mode), text)
	log := slog.With("session_id", res.SessionID, "mode", mode)

	switch {
	case text == "":
		res.Parts, res.Outcome = greetingParts(), OutcomeGreeting
		p.hydrate(ctx, res, true)
	case !p.cfg.CredentialsOK:
		res.Parts, res.Outcome = missingCredentialsParts(), OutcomeNoCredentials
		p.hydrate(ctx, res, true)
	default:
		res.Parts, res.Outcome = p.complete(ctx, res, text, log)
		if err := p.hydrate(ctx, res, res.Outcome == OutcomeProviderError); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("turn_audio_failed", "error", err)
			metrics.Errors.WithLabelValues("turn", "audio").Inc()
			res.Parts, res.Outcome = apologyParts(), OutcomeAudioError
			p.hydrate(ctx, res, true)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.schedule(res, log)

	elapsed := time.Since(start)
	metrics.TurnsTotal.WithLabelValues(string(mode), res.Outcome).Inc()
	metrics.TurnDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	p.cfg.Tracer.EndTurn(res.TurnID, float64(elapsed.Milliseconds()), summary(res.Parts), res.Outcome, len(res.Parts), res.VideoGenerating)
	log.Info("turn_done",
		"parts", len(res.Parts),
		"outcome", res.Outcome,
		"video_generating", res.VideoGenerating,
		"ms", elapsed.Milliseconds(),
	)
	return res, nil
}

// complete asks the model and resolves its reply to a valid part list.
func (p *Processor) complete(ctx context.Context, res *Result, text string, log *slog.Logger) ([]Part, string) {
	t0 := time.Now()
	c, err := p.cfg.LLM.Complete(ctx, pipeline.CompletionRequest{
		SystemPrompt: prompts.ForMode(res.Mode == ModeVideo),
		UserMessage:  text,
		Model:        p.cfg.Model,
		MaxTokens:    p.cfg.MaxTokens,
	})
	if err != nil {
		p.cfg.Tracer.Stage(res.TurnID, "llm", t0, text, "", err)
		log.Error("llm_failed", "error", err)
		return apologyParts(), OutcomeProviderError
	}
	p.cfg.Tracer.Stage(res.TurnID, "llm", t0, text, c.Text, nil)

	parts, err := parseParts(c.Text, c.Truncated, res.Mode)
	if err == nil {
		if c.Truncated {
			return parts, OutcomeRepaired
		}
		return parts, OutcomeOK
	}
	log.Warn("llm_output_unusable", "truncated", c.Truncated, "error", err)
	metrics.Errors.WithLabelValues("parse", errorType(err)).Inc()
	return substituteParts(res.Mode), OutcomeSubstituted
}

// hydrate attaches audio to every part. With bestEffort, failures leave the
// part without audio and are only logged.
func (p *Processor) hydrate(ctx context.Context, res *Result, bestEffort bool) error {
	g, gctx := errgroup.WithContext(ctx)
	if bestEffort {
		g, gctx = new(errgroup.Group), ctx
	}
	g.SetLimit(p.cfg.Parallel)
	log := slog.With("session_id", res.SessionID)

	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			t0 := time.Now()
			err := fn(gctx)
			p.cfg.Tracer.Stage(res.TurnID, name, t0, "", "", err)
			if err != nil && bestEffort {
				log.Warn("fallback_audio_failed", "stage", name, "error", err)
				metrics.Errors.WithLabelValues("tts", "fallback").Inc()
				return nil
			}
			return err
		})
	}

	var narrations []string
	var videoParts []*VideoPart
	for i, part := range res.Parts {
		name := fmt.Sprintf("%s_part_%d", render.SafeID(res.SessionID), i+1)
		switch pt := part.(type) {
		case *PlainPart:
			run("narrate", func(ctx context.Context) error {
				n, err := p.cfg.Speech.Narrate(ctx, pt.Text, name)
				pt.Audio = n
				return err
			})
		case *VideoPart:
			narrations = append(narrations, pt.Narration)
			videoParts = append(videoParts, pt)
			run("tts", func(ctx context.Context) error {
				n, err := p.cfg.Speech.Synthesize(ctx, pt.Narration, name)
				pt.PartAudio = n
				return err
			})
		}
	}
	if len(videoParts) > 0 {
		joined := pipeline.JoinNarration(narrations)
		run("narrate_combined", func(ctx context.Context) error {
			n, err := p.cfg.Speech.Narrate(ctx, joined, render.SafeID(res.SessionID)+"_combined")
			if err != nil {
				return err
			}
			for _, vp := range videoParts {
				vp.Combined = n
			}
			return nil
		})
	}
	return g.Wait()
}

// schedule submits the render job for a video turn.
func (p *Processor) schedule(res *Result, log *slog.Logger) {
	if p.cfg.Render == nil {
		return
	}
	job := render.Job{SessionID: res.SessionID, TurnID: res.TurnID}
	for _, part := range res.Parts {
		vp, ok := part.(*VideoPart)
		if !ok {
			return
		}
		sc := render.Scene{Index: vp.Index, Script: vp.SceneScript}
		if vp.PartAudio != nil {
			sc.AudioPath = vp.PartAudio.AudioPath
		}
		job.Scenes = append(job.Scenes, sc)
	}
	if len(job.Scenes) == 0 {
		return
	}
	if err := p.cfg.Render.Submit(job); err != nil {
		log.Warn("render_not_scheduled", "error", err)
		return
	}
	res.VideoGenerating = true
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnparseable):
		return "unparseable"
	case errors.Is(err, ErrMissingSceneScript):
		return "missing_scene_script"
	case errors.Is(err, ErrInvalidPart):
		return "invalid_part"
	}
	return "other"
}

func summary(parts []Part) string {
	texts := make([]string, len(parts))
	for i, part := range parts {
		texts[i] = part.base().Text
	}
	return strings.Join(texts, " | ")
}
