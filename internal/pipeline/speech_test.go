package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankajydv07/ai-tutor/gateway/internal/audio"
	"github.com/pankajydv07/ai-tutor/gateway/internal/lipsync"
)

type failingSynth struct{}

func (failingSynth) SynthesizeAudio(context.Context, string, TTSOptions) ([]byte, error) {
	return nil, errors.New("provider down")
}

func newTestSpeech(t *testing.T, backends map[string]TTSSynthesizer, engine string) *Speech {
	t.Helper()
	sp, err := NewSpeech(SpeechConfig{
		TTS:       NewTTSRouter(backends, engine),
		Engine:    engine,
		Extractor: lipsync.NewEstimator(),
		AudioDir:  t.TempDir(),
	})
	require.NoError(t, err)
	return sp
}

func TestSpeech_NarrateSilent(t *testing.T) {
	sp := newTestSpeech(t, map[string]TTSSynthesizer{"silent": NewSilentSynthesizer()}, "silent")

	n, err := sp.Narrate(context.Background(), "Gravity pulls everything toward the earth.", "sess_part_0")
	require.NoError(t, err)

	assert.Equal(t, "/audio/sess_part_0.wav", n.AudioURL)
	_, err = os.Stat(n.AudioPath)
	require.NoError(t, err)
	require.NotNil(t, n.LipSync)
	assert.NotEmpty(t, n.LipSync.MouthCues)

	d, err := audio.Duration(n.Audio)
	require.NoError(t, err)
	assert.InDelta(t, d.Seconds(), n.LipSync.Metadata.Duration, 1e-6)
}

func TestSpeech_SynthesisFailure(t *testing.T) {
	sp := newTestSpeech(t, map[string]TTSSynthesizer{"down": failingSynth{}}, "down")

	_, err := sp.Narrate(context.Background(), "hello", "x")
	assert.ErrorContains(t, err, "provider down")
}

func TestPiperSynthesizer_PostsText(t *testing.T) {
	wav := audio.Silence(200*time.Millisecond, 16000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/synthesize", r.URL.Path)
		w.Write(wav)
	}))
	defer srv.Close()

	router := NewTTSRouter(map[string]TTSSynthesizer{
		"fast": NewPiperSynthesizer(srv.URL, "en_US-lessac-low", srv.Client()),
	}, "fast")

	res, err := router.Synthesize(context.Background(), "Hello.", "unknown-engine", TTSOptions{})
	require.NoError(t, err)
	assert.Equal(t, ".wav", res.Ext)
	assert.Equal(t, wav, res.Audio)
}

func TestAudioExt(t *testing.T) {
	assert.Equal(t, ".mp3", audioExt([]byte("ID3\x04rest")))
	assert.Equal(t, ".mp3", audioExt([]byte{0xFF, 0xFB, 0x90, 0x00}))
	assert.Equal(t, ".ogg", audioExt([]byte("OggSxxxx")))
	assert.Equal(t, ".bin", audioExt([]byte("??")))
}

func TestRawToWAV_ElevenLabsFormats(t *testing.T) {
	wav, err := rawToWAV([]byte{0, 0, 0, 0}, "pcm_22050")
	require.NoError(t, err)
	assert.Equal(t, ".wav", audioExt(wav))

	mp3 := []byte("ID3\x04rest")
	out, err := rawToWAV(mp3, "mp3_44100_128")
	require.NoError(t, err)
	assert.Equal(t, mp3, out)

	_, err = rawToWAV([]byte{0, 0}, "pcm_fast")
	assert.Error(t, err)
}

func TestPostTTS_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convert/tts", r.URL.Path)
		http.Error(w, "speaker not loaded\ntraceback follows", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewMeloSynthesizer(srv.URL+"/", srv.Client()).SynthesizeAudio(context.Background(), "Hi.", TTSOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "melotts status 500: speaker not loaded")
	assert.NotContains(t, err.Error(), "traceback")
}
