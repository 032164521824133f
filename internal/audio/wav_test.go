package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_Silence(t *testing.T) {
	wav := Silence(1500*time.Millisecond, 16000)

	d, err := Duration(wav)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestDuration_NotWAV(t *testing.T) {
	_, err := Duration([]byte("ID3\x03\x00mp3 bytes here"))
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestSamplesToWAV_Clamps(t *testing.T) {
	wav := SamplesToWAV([]float32{2, -2}, 8000)
	require.Len(t, wav, 48)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, byte(0xff), wav[44])
	assert.Equal(t, byte(0x7f), wav[45])
}

func TestRawToWAV_PCM(t *testing.T) {
	raw := []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80}
	wav, err := RawToWAV(raw, CodecPCM, 16000)
	require.NoError(t, err)

	d, err := Duration(wav)
	require.NoError(t, err)
	assert.InDelta(t, float64(3*time.Second/16000), float64(d), float64(time.Microsecond))
	assert.Equal(t, raw, wav[44:])
}

func TestDecode_G711(t *testing.T) {
	// 0xFF is mu-law zero; 0xD5 is A-law's smallest positive step.
	samples, rate, err := Decode([]byte{0xFF, 0x7F}, CodecG711Ulaw, 16000)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Zero(t, samples[0])
	assert.Zero(t, samples[1])

	samples, rate, err = Decode([]byte{0xD5, 0x55}, CodecG711Alaw, 0)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Greater(t, samples[0], float32(0))
	assert.Less(t, samples[1], float32(0))
}

func TestDecode_Unsupported(t *testing.T) {
	_, _, err := Decode([]byte{1}, Codec("opus"), 48000)
	assert.Error(t, err)
}
