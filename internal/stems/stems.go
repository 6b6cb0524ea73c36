// Package stems splits a mix into frequency-band stems that approximate
// instrument separation: kick, bass, melody, percussion and a harmonic
// layer extracted with a spectral median mask.
package stems

import (
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/bcatacb/LyricsBeats/internal/audio"
)

// Stem is a named band of the source audio
type Stem struct {
	Name    string
	Samples []float64
}

// Split produces the five stems in a stable order
func Split(clip *audio.Clip) []Stem {
	nyquist := float64(clip.Rate) / 2

	return []Stem{
		{Name: "bass", Samples: audio.BandPass(clip.Samples, clip.Rate, 0, 200)},
		{Name: "kick", Samples: audio.BandPass(clip.Samples, clip.Rate, 0, 80)},
		{Name: "melody", Samples: audio.BandPass(clip.Samples, clip.Rate, 200, 2000)},
		{Name: "percussion", Samples: audio.BandPass(clip.Samples, clip.Rate, 2000, nyquist)},
		{Name: "harmony", Samples: Harmonic(clip.Samples)},
	}
}

const (
	frameSize    = 2048
	hopSize      = frameSize / 4
	medianKernel = 17
)

// Harmonic extracts the harmonic component via harmonic/percussive
// separation: median filtering of the magnitude spectrogram along time
// (harmonic) and frequency (percussive), combined into a soft mask.
func Harmonic(x []float64) []float64 {
	if len(x) < frameSize {
		return x
	}

	win := window.Hann(frameSize)
	numFrames := (len(x)-frameSize)/hopSize + 1

	// Forward STFT
	spectra := make([][]complex128, numFrames)
	mags := make([][]float64, numFrames)
	frame := make([]float64, frameSize)
	for i := 0; i < numFrames; i++ {
		off := i * hopSize
		for j := 0; j < frameSize; j++ {
			frame[j] = x[off+j] * win[j]
		}
		spec := fft.FFTReal(frame)
		spectra[i] = spec

		m := make([]float64, frameSize/2+1)
		for k := range m {
			m[k] = cmplxAbs(spec[k])
		}
		mags[i] = m
	}

	bins := frameSize/2 + 1

	// Harmonic estimate: median across time per frequency bin
	harm := make([][]float64, numFrames)
	for i := range harm {
		harm[i] = make([]float64, bins)
	}
	col := make([]float64, 0, numFrames)
	for k := 0; k < bins; k++ {
		for i := 0; i < numFrames; i++ {
			harm[i][k] = medianAround(mags, i, k, true, &col)
		}
	}

	// Percussive estimate: median across frequency per frame
	perc := make([][]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		perc[i] = make([]float64, bins)
		for k := 0; k < bins; k++ {
			perc[i][k] = medianAround(mags, i, k, false, &col)
		}
	}

	// Soft mask and inverse transform with overlap-add
	out := make([]float64, len(x))
	norm := make([]float64, len(x))
	for i := 0; i < numFrames; i++ {
		spec := spectra[i]
		masked := make([]complex128, frameSize)
		for k := 0; k < bins; k++ {
			h2 := harm[i][k] * harm[i][k]
			p2 := perc[i][k] * perc[i][k]
			mask := h2 / (h2 + p2 + 1e-12)
			masked[k] = scale(spec[k], mask)
			if k > 0 && k < frameSize/2 {
				masked[frameSize-k] = scale(spec[frameSize-k], mask)
			}
		}

		recon := fft.IFFT(masked)
		off := i * hopSize
		for j := 0; j < frameSize; j++ {
			out[off+j] += real(recon[j]) * win[j]
			norm[off+j] += win[j] * win[j]
		}
	}

	for i := range out {
		if norm[i] > 1e-8 {
			out[i] /= norm[i]
		}
	}
	return out
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func scale(c complex128, s float64) complex128 {
	return complex(real(c)*s, imag(c)*s)
}

// medianAround computes the median of a kernel centered at (i, k) along
// time (acrossTime) or frequency. The scratch slice avoids per-call
// allocations in the hot loop.
func medianAround(mags [][]float64, i, k int, acrossTime bool, scratch *[]float64) float64 {
	half := medianKernel / 2
	vals := (*scratch)[:0]

	if acrossTime {
		for t := i - half; t <= i+half; t++ {
			if t >= 0 && t < len(mags) {
				vals = append(vals, mags[t][k])
			}
		}
	} else {
		row := mags[i]
		for f := k - half; f <= k+half; f++ {
			if f >= 0 && f < len(row) {
				vals = append(vals, row[f])
			}
		}
	}
	*scratch = vals

	sort.Float64s(vals)
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
