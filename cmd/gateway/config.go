package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/env"
)

type config struct {
	port     string
	logLevel slog.Level

	llmEngine     string
	openaiAPIKey  string
	openaiBaseURL string
	openaiModel   string
	ollamaURL     string
	ollamaModel   string
	llmMaxTokens  int
	llmPoolSize   int

	ttsEngine         string
	ttsSpeed          float64
	piperURL          string
	piperVoice        string
	kokoroURL         string
	melottsURL        string
	elevenlabsAPIKey  string
	elevenlabsVoiceID string
	elevenlabsModelID string
	elevenlabsFormat  string
	ttsPoolSize       int
	speechParallel    int

	ffmpegPath  string
	rhubarbPath string
	audioDir    string
	videoDir    string

	renderWorkerURL string
	renderTimeout   time.Duration
	renderWorkers   int
	renderQueueSize int
	renderParallel  int

	sessionBackend string
	sessionTTL     time.Duration
	redisAddr      string
	redisPassword  string
	redisDB        int
	redisPrefix    string

	traceDBURL string

	maxSyncSockets int
	syncFPS        int
}

func loadConfig() config {
	return config{
		port:     env.Str("GATEWAY_PORT", "8000"),
		logLevel: parseLevel(env.Str("LOG_LEVEL", "info")),

		llmEngine:     env.Str("LLM_ENGINE", "openai"),
		openaiAPIKey:  env.Str("OPENAI_API_KEY", ""),
		openaiBaseURL: env.Str("OPENAI_BASE_URL", ""),
		openaiModel:   env.Str("OPENAI_MODEL", "gpt-4o-mini"),
		ollamaURL:     env.Str("OLLAMA_URL", "http://localhost:11434"),
		ollamaModel:   env.Str("OLLAMA_MODEL", "llama3.2:3b"),
		llmMaxTokens:  env.Int("LLM_MAX_TOKENS", 1500),
		llmPoolSize:   env.Int("LLM_POOL_SIZE", 50),

		ttsEngine:         env.Str("TTS_ENGINE", "piper"),
		ttsSpeed:          env.Float("TTS_SPEED", 1.0),
		piperURL:          env.Str("PIPER_URL", ""),
		piperVoice:        env.Str("PIPER_VOICE", "en_US-lessac-medium"),
		kokoroURL:         env.Str("KOKORO_URL", ""),
		melottsURL:        env.Str("MELOTTS_URL", ""),
		elevenlabsAPIKey:  env.Str("ELEVENLABS_API_KEY", ""),
		elevenlabsVoiceID: env.Str("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		elevenlabsModelID: env.Str("ELEVENLABS_MODEL_ID", "eleven_turbo_v2_5"),
		elevenlabsFormat:  env.Str("ELEVENLABS_OUTPUT_FORMAT", "pcm_16000"),
		ttsPoolSize:       env.Int("TTS_POOL_SIZE", 50),
		speechParallel:    env.Int("SPEECH_PARALLEL", 3),

		ffmpegPath:  env.Str("FFMPEG_PATH", "ffmpeg"),
		rhubarbPath: env.Str("RHUBARB_PATH", "rhubarb"),
		audioDir:    env.Str("AUDIO_DIR", "./audios"),
		videoDir:    env.Str("VIDEO_DIR", "./videos"),

		renderWorkerURL: env.Str("RENDER_WORKER_URL", "http://localhost:8001"),
		renderTimeout:   env.Duration("RENDER_TIMEOUT", 5*time.Minute),
		renderWorkers:   env.Int("RENDER_WORKERS", 2),
		renderQueueSize: env.Int("RENDER_QUEUE_SIZE", 16),
		renderParallel:  env.Int("RENDER_PARALLEL_PARTS", 2),

		sessionBackend: env.Str("SESSION_BACKEND", "memory"),
		sessionTTL:     env.Duration("SESSION_TTL", 30*time.Minute),
		redisAddr:      env.Str("REDIS_ADDR", "localhost:6379"),
		redisPassword:  env.Str("REDIS_PASSWORD", ""),
		redisDB:        env.Int("REDIS_DB", 0),
		redisPrefix:    env.Str("REDIS_PREFIX", "tutor:session:"),

		traceDBURL: env.Str("TRACE_DB_URL", ""),

		maxSyncSockets: env.Int("MAX_SYNC_SOCKETS", 100),
		syncFPS:        env.Int("SYNC_FPS", 30),
	}
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// credentialsOK reports whether the configured model engine can authenticate.
// Ollama needs no key.
func (c config) credentialsOK() bool {
	if c.llmEngine == "ollama" {
		return true
	}
	return c.openaiAPIKey != ""
}
