package audio

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

// biquad is a single second-order IIR filter section
type biquad struct {
	b0, b1, b2, a1, a2 float64
}

// Butterworth Q values for a cascaded 4th-order response
var butterworthQ = [2]float64{0.54119610, 1.30656296}

func highpassBiquad(rate int, cutoff, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / float64(rate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosw) / 2 / a0,
		b1: -(1 + cosw) / a0,
		b2: (1 + cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func lowpassBiquad(rate int, cutoff, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / float64(rate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosw) / 2 / a0,
		b1: (1 - cosw) / a0,
		b2: (1 - cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func (bq biquad) process(x []float64) []float64 {
	y := make([]float64, len(x))
	var x1, x2, y1, y2 float64
	for i, v := range x {
		out := bq.b0*v + bq.b1*x1 + bq.b2*x2 - bq.a1*y1 - bq.a2*y2
		x2, x1 = x1, v
		y2, y1 = y1, out
		y[i] = out
	}
	return y
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// zeroPhase applies a biquad cascade forward and backward, cancelling
// the phase shift the way scipy's filtfilt does.
func zeroPhase(x []float64, sections []biquad) []float64 {
	y := x
	for _, bq := range sections {
		y = bq.process(y)
	}
	reverse(y)
	for _, bq := range sections {
		y = bq.process(y)
	}
	reverse(y)
	return y
}

// HighPass applies a zero-phase 4th-order Butterworth high-pass filter
func HighPass(x []float64, rate int, cutoff float64) []float64 {
	sections := []biquad{
		highpassBiquad(rate, cutoff, butterworthQ[0]),
		highpassBiquad(rate, cutoff, butterworthQ[1]),
	}
	return zeroPhase(x, sections)
}

// LowPass applies a zero-phase 4th-order Butterworth low-pass filter
func LowPass(x []float64, rate int, cutoff float64) []float64 {
	sections := []biquad{
		lowpassBiquad(rate, cutoff, butterworthQ[0]),
		lowpassBiquad(rate, cutoff, butterworthQ[1]),
	}
	return zeroPhase(x, sections)
}

// BandPass isolates a frequency band with cascaded high/low-pass filters.
// Degenerate edges fall back to a single filter.
func BandPass(x []float64, rate int, low, high float64) []float64 {
	nyquist := float64(rate) / 2
	if high >= nyquist {
		high = nyquist * 0.99
	}
	if low <= 0 {
		return LowPass(x, rate, high)
	}
	if high >= nyquist*0.99 {
		return HighPass(x, rate, low)
	}
	return LowPass(HighPass(x, rate, low), rate, high)
}

// Resample changes the sampling ratio by linear interpolation.
// ratio > 1 shortens the signal and raises pitch.
func Resample(x []float64, ratio float64) []float64 {
	if len(x) == 0 || ratio <= 0 {
		return nil
	}
	outLen := int(float64(len(x)) / ratio)
	if outLen < 1 {
		outLen = 1
	}
	y := make([]float64, outLen)
	for i := range y {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(x)-1 {
			y[i] = x[len(x)-1]
			continue
		}
		frac := pos - float64(j)
		y[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return y
}

const (
	stretchFrame = 2048
	stretchHop   = stretchFrame / 4
)

// TimeStretch changes duration without changing pitch using windowed
// overlap-add. rate > 1 shortens the output.
func TimeStretch(x []float64, rate float64) []float64 {
	if len(x) == 0 || rate <= 0 {
		return nil
	}
	if len(x) < stretchFrame {
		return Resample(x, rate)
	}

	win := window.Hann(stretchFrame)
	analysisHop := float64(stretchHop) * rate
	numFrames := int(float64(len(x)-stretchFrame)/analysisHop) + 1
	outLen := (numFrames-1)*stretchHop + stretchFrame

	y := make([]float64, outLen)
	norm := make([]float64, outLen)

	for i := 0; i < numFrames; i++ {
		inPos := int(float64(i) * analysisHop)
		if inPos+stretchFrame > len(x) {
			break
		}
		outPos := i * stretchHop
		for j := 0; j < stretchFrame; j++ {
			y[outPos+j] += x[inPos+j] * win[j]
			norm[outPos+j] += win[j]
		}
	}

	for i := range y {
		if norm[i] > 1e-8 {
			y[i] /= norm[i]
		}
	}
	return y
}

// Normalize scales samples so the peak magnitude is 1
func Normalize(x []float64) []float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return x
	}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v / peak
	}
	return y
}
