package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Codec names a headerless sample encoding.
type Codec string

const (
	CodecPCM      Codec = "pcm" // 16-bit little-endian
	CodecG711Ulaw Codec = "ulaw"
	CodecG711Alaw Codec = "alaw"
)

// Decode converts headerless samples to float32 in [-1, 1]. G.711 is always
// 8 kHz; PCM keeps sampleRate.
func Decode(data []byte, codec Codec, sampleRate int) ([]float32, int, error) {
	switch codec {
	case CodecPCM:
		return decodePCM16(data), sampleRate, nil
	case CodecG711Ulaw:
		return expand(data, ulawSample), 8000, nil
	case CodecG711Alaw:
		return expand(data, alawSample), 8000, nil
	}
	return nil, 0, fmt.Errorf("unsupported codec: %s", codec)
}

// RawToWAV decodes headerless samples and wraps them as mono 16-bit WAV.
func RawToWAV(data []byte, codec Codec, sampleRate int) ([]byte, error) {
	samples, rate, err := Decode(data, codec, sampleRate)
	if err != nil {
		return nil, err
	}
	return SamplesToWAV(samples, rate), nil
}

func decodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / math.MaxInt16
	}
	return out
}

func expand(data []byte, sample func(byte) int16) []float32 {
	out := make([]float32, len(data))
	for i, b := range data {
		out[i] = float32(sample(b)) / math.MaxInt16
	}
	return out
}

func ulawSample(b byte) int16 {
	u := ^b
	t := (int16(u&0x0F) << 3) + 0x84
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return 0x84 - t
	}
	return t - 0x84
}

func alawSample(b byte) int16 {
	a := b ^ 0x55
	t := int16(a&0x0F) << 4
	switch seg := (a & 0x70) >> 4; seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t = (t + 0x108) << (seg - 1)
	}
	if a&0x80 != 0 {
		return t
	}
	return -t
}
