package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/avatar"
	"github.com/pankajydv07/ai-tutor/gateway/internal/lipsync"
	"github.com/pankajydv07/ai-tutor/gateway/internal/orchestrator"
	"github.com/pankajydv07/ai-tutor/gateway/internal/pipeline"
	"github.com/pankajydv07/ai-tutor/gateway/internal/render"
	"github.com/pankajydv07/ai-tutor/gateway/internal/session"
	"github.com/pankajydv07/ai-tutor/gateway/internal/trace"
	"github.com/pankajydv07/ai-tutor/gateway/internal/turn"
	"github.com/pankajydv07/ai-tutor/gateway/internal/videosync"
	"github.com/pankajydv07/ai-tutor/gateway/internal/ws"
)

const (
	// servicePollInterval is how often the collaborator hub re-probes.
	servicePollInterval = 10 * time.Second

	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg := loadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel})))

	bg, stopBG := context.WithCancel(context.Background())
	defer stopBG()

	// Completion providers
	llmBackends := map[string]pipeline.CompletionProvider{
		"ollama": pipeline.NewOllamaLLMClient(cfg.ollamaURL, cfg.ollamaModel, cfg.llmMaxTokens, cfg.llmPoolSize),
	}
	model := cfg.ollamaModel
	if cfg.openaiAPIKey != "" {
		llmBackends["openai"] = pipeline.NewOpenAICompletion(cfg.openaiAPIKey, cfg.openaiBaseURL, cfg.openaiModel, cfg.llmMaxTokens, cfg.llmPoolSize)
	}
	if cfg.llmEngine == "openai" {
		model = cfg.openaiModel
	}
	llmRouter := pipeline.NewLLMRouter(llmBackends, cfg.llmEngine)

	// TTS backends
	ttsHTTP := pipeline.NewPooledHTTPClient(cfg.ttsPoolSize, 30*time.Second)
	ttsBackends := map[string]pipeline.TTSSynthesizer{}
	if cfg.piperURL != "" {
		ttsBackends["piper"] = pipeline.NewPiperSynthesizer(cfg.piperURL, cfg.piperVoice, ttsHTTP)
	}
	if cfg.kokoroURL != "" {
		ttsBackends["kokoro"] = pipeline.NewOpenAISynthesizer(cfg.kokoroURL, "kokoro", "af_heart", ttsHTTP)
	}
	if cfg.melottsURL != "" {
		ttsBackends["melotts"] = pipeline.NewMeloSynthesizer(cfg.melottsURL, ttsHTTP)
	}
	if cfg.elevenlabsAPIKey != "" {
		ttsBackends["elevenlabs"] = pipeline.NewElevenLabsSynthesizer(cfg.elevenlabsAPIKey, cfg.elevenlabsVoiceID, cfg.elevenlabsModelID, cfg.elevenlabsFormat, ttsHTTP)
	}
	if cfg.ttsEngine == "silent" {
		ttsBackends["silent"] = pipeline.NewSilentSynthesizer()
	}
	ttsRouter := pipeline.NewTTSRouter(ttsBackends, cfg.ttsEngine)

	var extractor lipsync.Extractor = lipsync.NewRhubarb(cfg.rhubarbPath, cfg.ffmpegPath, "phonetic")
	if _, err := exec.LookPath(cfg.rhubarbPath); err != nil {
		slog.Warn("rhubarb not found, estimating lipsync from text", "path", cfg.rhubarbPath)
		extractor = lipsync.NewEstimator()
	}

	speech, err := pipeline.NewSpeech(pipeline.SpeechConfig{
		TTS:       ttsRouter,
		Engine:    cfg.ttsEngine,
		Options:   pipeline.TTSOptions{Speed: cfg.ttsSpeed},
		Extractor: extractor,
		AudioDir:  cfg.audioDir,
		URLPrefix: "/audio",
	})
	if err != nil {
		slog.Error("speech init", "error", err)
		os.Exit(1)
	}

	if err = os.MkdirAll(cfg.videoDir, 0o755); err != nil {
		slog.Error("create video dir", "error", err)
		os.Exit(1)
	}

	// Session store
	store, closeStore := openSessionStore(bg, cfg)
	defer closeStore()

	// Tracing
	var traceStore *trace.Store
	var tracer *trace.Tracer
	if cfg.traceDBURL != "" {
		openCtx, cancelOpen := context.WithTimeout(bg, 10*time.Second)
		traceStore, err = trace.Open(openCtx, cfg.traceDBURL)
		cancelOpen()
		if err != nil {
			slog.Warn("trace db unavailable, tracing disabled", "error", err)
		} else {
			tracer = trace.NewTracer(traceStore)
			slog.Info("tracing enabled")
		}
	}

	// Background render
	worker := render.NewHTTPWorker(cfg.renderWorkerURL, cfg.renderTimeout, cfg.renderWorkers*max(cfg.renderParallel, 1))
	renderPipeline := render.NewPipeline(render.PipelineConfig{
		Worker:         worker,
		Store:          store,
		Tracer:         tracer,
		Parallel:       cfg.renderParallel,
		VideoURLPrefix: "/videos",
	})
	queue := render.NewQueue(renderPipeline, cfg.renderWorkers, cfg.renderQueueSize)
	queue.Start(bg)

	credentialsOK := cfg.credentialsOK() && ttsRouter.Has(cfg.ttsEngine)
	if !credentialsOK {
		slog.Warn("model or speech backend not configured, turns will return setup instructions",
			"llm_engine", cfg.llmEngine, "tts_engine", cfg.ttsEngine)
	}

	processor := turn.NewProcessor(turn.Config{
		LLM:           llmRouter,
		Speech:        speech,
		Render:        queue,
		Tracer:        tracer,
		Model:         model,
		MaxTokens:     cfg.llmMaxTokens,
		CredentialsOK: credentialsOK,
		Parallel:      cfg.speechParallel,
	})

	videos := videosync.NewRegistry()
	syncHandler := ws.NewHandler(ws.HandlerConfig{
		Videos:        videos,
		Avatar:        avatar.DefaultConfig(),
		FPS:           cfg.syncFPS,
		MaxConcurrent: cfg.maxSyncSockets,
	})

	prober := orchestrator.NewProber(orchestrator.NewRegistry(collaborators(cfg)))
	services := newServiceHub(prober)
	go services.run(bg, servicePollInterval)

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		processor:  processor,
		sessions:   store,
		worker:     worker,
		ttsClient:  ttsRouter,
		services:   services,
		wsHandler:  syncHandler,
		traceStore: traceStore,
		audioDir:   cfg.audioDir,
		videoDir:   cfg.videoDir,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		shutdown(srv, queue, tracer, traceStore, shutdownTimeout)
	}()

	slog.Info("gateway starting",
		"addr", addr,
		"llm_engine", cfg.llmEngine,
		"tts_engine", cfg.ttsEngine,
		"session_backend", cfg.sessionBackend,
		"render_worker", cfg.renderWorkerURL,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-drained

	slog.Info("gateway stopped")
}

// shutdown stops accepting requests, waits for in-flight ones, then drains
// background renders and flushes traces. Each step runs even if an earlier
// one timed out.
func shutdown(srv server, queue drainer, tracer *trace.Tracer, store *trace.Store, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	slog.Info("draining render queue")
	queue.Close()
	tracer.Close()
	if store != nil {
		if err := store.Close(); err != nil {
			slog.Warn("trace store close", "error", err)
		}
	}
}

type server interface {
	Shutdown(ctx context.Context) error
}

type drainer interface {
	Close()
}

// openSessionStore returns the configured store and its cleanup. A Redis
// store that cannot be reached falls back to memory.
func openSessionStore(ctx context.Context, cfg config) (session.Store, func()) {
	if cfg.sessionBackend == "redis" {
		rs, err := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
			Prefix:   cfg.redisPrefix,
			TTL:      cfg.sessionTTL,
		})
		if err == nil {
			slog.Info("session store", "backend", "redis", "addr", cfg.redisAddr)
			return rs, func() { rs.Close() }
		}
		slog.Warn("redis unavailable, using memory session store", "addr", cfg.redisAddr, "error", err)
	}

	ms := session.NewMemoryStore(cfg.sessionTTL)
	go ms.RunSweeper(ctx, time.Minute)
	slog.Info("session store", "backend", "memory", "ttl", cfg.sessionTTL)
	return ms, func() {}
}

func collaborators(cfg config) map[string]orchestrator.ServiceMeta {
	svcs := map[string]orchestrator.ServiceMeta{
		"render-worker": {Category: "render", HealthURL: cfg.renderWorkerURL + "/health"},
		"rhubarb":       {Category: "lipsync", Binary: cfg.rhubarbPath},
		"ffmpeg":        {Category: "lipsync", Binary: cfg.ffmpegPath},
	}
	if cfg.llmEngine == "ollama" {
		svcs["ollama"] = orchestrator.ServiceMeta{Category: "llm", HealthURL: cfg.ollamaURL + "/api/tags"}
	}
	if cfg.piperURL != "" {
		svcs["piper"] = orchestrator.ServiceMeta{Category: "tts", HealthURL: cfg.piperURL + "/health"}
	}
	if cfg.melottsURL != "" {
		svcs["melotts"] = orchestrator.ServiceMeta{Category: "tts", HealthURL: cfg.melottsURL + "/health"}
	}
	return svcs
}
