// Package audio encodes and inspects captured APU output.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth = 16
	// WAVE_FORMAT_PCM
	pcmFormat = 1
	fullScale = 32767
)

// ErrNotWAV is returned when decoding something that is not a RIFF WAVE file.
var ErrNotWAV = errors.New("audio: not a WAV file")

// WriteWAV encodes samples as 16-bit mono PCM at rate Hz. Samples outside
// [-1, 1] are clipped.
func WriteWAV(ws io.WriteSeeker, samples []float32, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", rate)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(clamp(s) * fullScale)
	}

	enc := wav.NewEncoder(ws, rate, bitDepth, 1, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finish: %w", err)
	}
	return nil
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// EncodeWAV returns the WAV encoding of samples.
func EncodeWAV(samples []float32, rate int) ([]byte, error) {
	var sb seekBuffer
	if err := WriteWAV(&sb, samples, rate); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

// SaveWAV writes samples to a WAV file at path.
func SaveWAV(path string, samples []float32, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := WriteWAV(f, samples, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadWAV decodes a PCM WAV stream into mono samples in [-1, 1]. Stereo
// input is averaged.
func ReadWAV(rs io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, 0, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("audio: decode: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := float32(int(1) << (dec.BitDepth - 1))

	samples := make([]float32, len(buf.Data)/channels)
	for i := range samples {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float32(sum) / float32(channels) / scale
	}
	return samples, buf.Format.SampleRate, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(s.pos) + offset
	case io.SeekEnd:
		pos = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: bad whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("audio: negative seek")
	}
	s.pos = int(pos)
	return pos, nil
}
