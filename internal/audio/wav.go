package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// ErrNotWAV is returned when a buffer does not carry a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a wav file")

// SamplesToWAV encodes float32 PCM samples as a WAV byte slice.
func SamplesToWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		clamped := max(-1.0, min(1.0, s))
		val := int16(clamped * math.MaxInt16)
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(val))
	}

	return buf
}

// Silence returns a mono 16-bit WAV of the given duration.
func Silence(d time.Duration, sampleRate int) []byte {
	n := int(d.Seconds() * float64(sampleRate))
	return SamplesToWAV(make([]float32, max(n, 0)), sampleRate)
}

// Duration reads the fmt and data chunks of a WAV buffer and returns its play length.
// Chunks other than fmt/data (LIST, fact) are skipped.
func Duration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, ErrNotWAV
	}

	var byteRate uint32
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, ErrNotWAV
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, ErrNotWAV
			}
			// streamed WAVs may carry a zero or oversized data length
			if size == 0 || body+size > len(data) {
				size = len(data) - body
			}
			secs := float64(size) / float64(byteRate)
			return time.Duration(secs * float64(time.Second)), nil
		}
		off = body + size + size%2
	}
	return 0, ErrNotWAV
}
