package audio

import (
	"fmt"
	"io"
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/aybabtme/uniplot/histogram"
)

// SilenceThreshold is the RMS level below which a capture counts as silent.
const SilenceThreshold = 0.01

// Stats summarizes a capture.
type Stats struct {
	Samples    int     `json:"samples"`
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration_sec"`
	RMS        float64 `json:"rms"`
	Peak       float64 `json:"peak"`
	Frequency  float64 `json:"frequency"`
	IsPlaying  bool    `json:"is_playing"`
	IsSilence  bool    `json:"is_silence"`
}

// Analyze computes level and pitch statistics. Frequency is the
// strongest non-DC bin of the spectrum; samples are zero-padded to a
// power of two, so its resolution is rate/len rounded down to that size.
func Analyze(samples []float32, rate int) Stats {
	st := Stats{Samples: len(samples), SampleRate: rate, IsSilence: true}
	if len(samples) == 0 || rate <= 0 {
		return st
	}
	st.Duration = float64(len(samples)) / float64(rate)

	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
		st.Peak = math.Max(st.Peak, math.Abs(v))
	}
	st.RMS = math.Sqrt(sum / float64(len(samples)))
	st.Frequency = dominantFrequency(samples, rate)
	st.IsPlaying = st.RMS > SilenceThreshold
	st.IsSilence = st.RMS < SilenceThreshold
	return st
}

func dominantFrequency(samples []float32, rate int) float64 {
	n := 2
	for n < len(samples) {
		n <<= 1
	}
	x := make([]complex128, n)
	for i, s := range samples {
		x[i] = complex(float64(s), 0)
	}
	fft(x)

	best, mag := 1, -1.0
	for k := 1; k < n/2; k++ {
		if m := cmplx.Abs(x[k]); m > mag {
			best, mag = k, m
		}
	}
	return float64(best) * float64(rate) / float64(n)
}

// fft is an in-place iterative radix-2 transform; len(x) must be a
// power of two.
func fft(x []complex128) {
	n := len(x)
	shift := uint(bits.UintSize - bits.TrailingZeros(uint(n)))
	for i := range x {
		if j := int(bits.Reverse(uint(i)) >> shift); j > i {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < size/2; k++ {
				a, b := x[start+k], w*x[start+k+size/2]
				x[start+k], x[start+k+size/2] = a+b, a-b
				w *= step
			}
		}
	}
}

// FprintHistogram draws the amplitude distribution of samples.
func FprintHistogram(w io.Writer, samples []float32, bins, width int) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "(no samples)")
		return err
	}
	data := make([]float64, len(samples))
	constant := true
	for i, s := range samples {
		data[i] = float64(s)
		constant = constant && s == samples[0]
	}
	if constant {
		_, err := fmt.Fprintf(w, "%+.4f: %d samples\n", data[0], len(data))
		return err
	}
	h := histogram.Hist(bins, data)
	return histogram.Fprint(w, h, histogram.Linear(width))
}
