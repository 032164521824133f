package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/audio"
	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

// TTSOptions holds per-call TTS tuning parameters.
type TTSOptions struct {
	Speed float64
	Voice string
}

// TTSSynthesizer produces audio from text.
type TTSSynthesizer interface {
	SynthesizeAudio(ctx context.Context, text string, opts TTSOptions) ([]byte, error)
}

// TTSResult holds synthesized audio with timing.
type TTSResult struct {
	Audio     []byte  `json:"-"`
	Ext       string  `json:"ext"`
	LatencyMs float64 `json:"latency_ms"`
}

// TTSRouter dispatches to the correct TTS backend based on engine name.
// Wraps the generic Router with a TTS-specific Synthesize method that adds timing/metrics.
type TTSRouter struct {
	*Router[TTSSynthesizer]
}

// NewTTSRouter creates a router with registered TTS backends and a fallback default.
func NewTTSRouter(backends map[string]TTSSynthesizer, fallback string) *TTSRouter {
	return &TTSRouter{Router: NewRouter(backends, fallback)}
}

// Synthesize routes to the correct backend, synthesizes audio, and records latency metrics.
func (r *TTSRouter) Synthesize(ctx context.Context, text, engine string, opts TTSOptions) (*TTSResult, error) {
	start := time.Now()

	backend, err := r.Route(engine)
	if err != nil {
		return nil, err
	}

	audioData, err := backend.SynthesizeAudio(ctx, text, opts)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "synth").Inc()
		return nil, err
	}
	if len(audioData) == 0 {
		metrics.Errors.WithLabelValues("tts", "empty").Inc()
		return nil, fmt.Errorf("tts %s: empty audio", engine)
	}

	latency := time.Since(start)
	metrics.StageDuration.WithLabelValues("tts").Observe(latency.Seconds())

	return &TTSResult{
		Audio:     audioData,
		Ext:       audioExt(audioData),
		LatencyMs: float64(latency.Milliseconds()),
	}, nil
}

// --- Piper backend (piper-tts HTTP sidecar, returns WAV) ---

type piperSynthesizer struct {
	url    string
	voice  string
	client *http.Client
}

func NewPiperSynthesizer(url, voice string, client *http.Client) TTSSynthesizer {
	return &piperSynthesizer{url: strings.TrimRight(url, "/"), voice: voice, client: client}
}

func (p *piperSynthesizer) SynthesizeAudio(ctx context.Context, text string, opts TTSOptions) ([]byte, error) {
	payload := map[string]string{"text": text, "voice": pick(opts.Voice, p.voice)}
	return postTTS(ctx, p.client, "piper", p.url+"/synthesize", payload, nil)
}

// --- OpenAI-compatible backend (Kokoro or any server exposing /v1/audio/speech) ---

type openaiSynthesizer struct {
	url    string
	model  string
	voice  string
	client *http.Client
}

func NewOpenAISynthesizer(url, model, voice string, client *http.Client) TTSSynthesizer {
	return &openaiSynthesizer{url: strings.TrimRight(url, "/"), model: model, voice: voice, client: client}
}

func (o *openaiSynthesizer) SynthesizeAudio(ctx context.Context, text string, opts TTSOptions) ([]byte, error) {
	payload := struct {
		Input          string  `json:"input"`
		Model          string  `json:"model"`
		Voice          string  `json:"voice"`
		Speed          float64 `json:"speed,omitempty"`
		ResponseFormat string  `json:"response_format"`
	}{Input: text, Model: o.model, Voice: pick(opts.Voice, o.voice), Speed: opts.Speed, ResponseFormat: "wav"}
	return postTTS(ctx, o.client, o.model, o.url+"/v1/audio/speech", payload, nil)
}

// --- ElevenLabs backend (cloud API via api.elevenlabs.io) ---

// elevenlabsFormat is the default output format. Raw PCM is wrapped as WAV so
// the lip-sync extractors can read it without a transcode.
const elevenlabsFormat = "pcm_16000"

type elevenlabsSynthesizer struct {
	apiKey  string
	voiceID string
	modelID string
	format  string
	client  *http.Client
}

func NewElevenLabsSynthesizer(apiKey, voiceID, modelID, format string, client *http.Client) TTSSynthesizer {
	if format == "" {
		format = elevenlabsFormat
	}
	return &elevenlabsSynthesizer{apiKey: apiKey, voiceID: voiceID, modelID: modelID, format: format, client: client}
}

func (e *elevenlabsSynthesizer) SynthesizeAudio(ctx context.Context, text string, _ TTSOptions) ([]byte, error) {
	payload := map[string]string{"text": text, "model_id": e.modelID}
	url := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=%s", e.voiceID, e.format)
	raw, err := postTTS(ctx, e.client, "elevenlabs", url, payload, map[string]string{"xi-api-key": e.apiKey})
	if err != nil {
		return nil, err
	}
	return rawToWAV(raw, e.format)
}

// rawToWAV wraps headerless ElevenLabs output ("pcm_<rate>", "ulaw_8000",
// "alaw_8000") in a WAV container. Other formats pass through unchanged.
func rawToWAV(raw []byte, format string) ([]byte, error) {
	name, rateStr, _ := strings.Cut(format, "_")
	codec := audio.Codec(name)
	switch codec {
	case audio.CodecPCM, audio.CodecG711Ulaw, audio.CodecG711Alaw:
	default:
		return raw, nil
	}
	rate, err := strconv.Atoi(rateStr)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs format %q: bad sample rate", format)
	}
	wav, err := audio.RawToWAV(raw, codec, rate)
	if err != nil {
		return nil, fmt.Errorf("decode elevenlabs audio: %w", err)
	}
	return wav, nil
}

// --- MeloTTS backend (self-hosted multilingual TTS, /convert/tts endpoint) ---

type meloSynthesizer struct {
	url    string
	client *http.Client
}

func NewMeloSynthesizer(url string, client *http.Client) TTSSynthesizer {
	return &meloSynthesizer{url: strings.TrimRight(url, "/"), client: client}
}

func (m *meloSynthesizer) SynthesizeAudio(ctx context.Context, text string, opts TTSOptions) ([]byte, error) {
	payload := struct {
		Text      string  `json:"text"`
		Speed     float64 `json:"speed"`
		Language  string  `json:"language"`
		SpeakerID string  `json:"speaker_id"`
	}{Text: text, Speed: speedOr1(opts.Speed), Language: "EN", SpeakerID: "EN-Default"}
	return postTTS(ctx, m.client, "melotts", m.url+"/convert/tts", payload, nil)
}

// --- Silent backend (no provider configured; WAV silence paced like speech) ---

// silentWordsPerSecond approximates a calm narration pace.
const silentWordsPerSecond = 2.6

type silentSynthesizer struct {
	sampleRate int
}

// NewSilentSynthesizer returns a backend that produces silence long enough to
// speak text, so lip-sync and the avatar clock still have an audio file.
func NewSilentSynthesizer() TTSSynthesizer {
	return &silentSynthesizer{sampleRate: 16000}
}

func (s *silentSynthesizer) SynthesizeAudio(_ context.Context, text string, opts TTSOptions) ([]byte, error) {
	words := len(strings.Fields(text))
	secs := float64(max(words, 1)) / (silentWordsPerSecond * speedOr1(opts.Speed))
	return audio.Silence(time.Duration(secs*float64(time.Second)), s.sampleRate), nil
}

// audioExt sniffs the container so files land on disk with the right extension.
func audioExt(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ".wav"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return ".ogg"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return ".mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ".mp3"
	}
	return ".bin"
}

// --- shared helpers ---

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func speedOr1(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	return speed
}

// postTTS sends payload as JSON and returns the audio body. Non-200 replies
// carry the first line of the backend's error text.
func postTTS(ctx context.Context, client *http.Client, backend, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", backend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", backend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		line, _, _ := strings.Cut(strings.TrimSpace(string(msg)), "\n")
		return nil, fmt.Errorf("%s status %d: %s", backend, resp.StatusCode, line)
	}
	return io.ReadAll(resp.Body)
}
