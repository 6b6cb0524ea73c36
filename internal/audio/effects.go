package audio

import (
	"fmt"
	"math"
	"math/rand"
)

// ChainParams selects the randomized parts of the effect chain
type ChainParams struct {
	PitchSemitones int     `json:"pitch_semitones"`
	TempoFactor    float64 `json:"tempo_factor"`
}

// String identifies a parameter set, used for cache versioning
func (p ChainParams) String() string {
	return fmt.Sprintf("pitch=%d,tempo=%.3f", p.PitchSemitones, p.TempoFactor)
}

var pitchChoices = []int{-3, -2, -1, 1, 2, 3}

// RandomChainParams draws pitch shift (never zero semitones) and tempo
// factor (90-110% of original) for a transform run.
func RandomChainParams(rng *rand.Rand) ChainParams {
	return ChainParams{
		PitchSemitones: pitchChoices[rng.Intn(len(pitchChoices))],
		TempoFactor:    0.9 + 0.2*rng.Float64(),
	}
}

// StereoClip holds the two channels produced by the effect chain
type StereoClip struct {
	Left  []float64
	Right []float64
	Rate  int
}

// ApplyChain runs the full derivative-work effect chain:
// pitch shift, time stretch, EQ, reverb, compression, distortion,
// stereo widening and peak normalization.
func ApplyChain(clip *Clip, p ChainParams) *StereoClip {
	x := PitchShift(clip.Samples, p.PitchSemitones)
	x = TimeStretch(x, p.TempoFactor)
	x = applyEQ(x, clip.Rate)
	x = addReverb(x, clip.Rate)
	x = Compress(x, 0.7, 4.0)
	x = Distort(x)

	left, right := StereoWiden(x)
	left = Normalize(left)
	right = Normalize(right)

	return &StereoClip{Left: left, Right: right, Rate: clip.Rate}
}

// PitchShift shifts pitch by n semitones while preserving duration:
// stretch to compensate, then resample back to the original length.
func PitchShift(x []float64, semitones int) []float64 {
	if semitones == 0 {
		return x
	}
	factor := math.Pow(2, float64(semitones)/12)
	stretched := TimeStretch(x, 1/factor)
	return Resample(stretched, factor)
}

// applyEQ removes rumble below 80Hz and adds a 0.3x air boost above 10kHz
func applyEQ(x []float64, rate int) []float64 {
	filtered := HighPass(x, rate, 80)

	airCutoff := 10000.0
	if nyquist := float64(rate) / 2; airCutoff >= nyquist {
		airCutoff = nyquist * 0.9
	}
	air := HighPass(x, rate, airCutoff)

	y := make([]float64, len(x))
	for i := range y {
		y[i] = filtered[i] + 0.3*air[i]
	}
	return y
}

// addReverb mixes in a 30ms delayed copy at 30% wet
func addReverb(x []float64, rate int) []float64 {
	delay := int(0.03 * float64(rate))
	y := make([]float64, len(x))
	for i := range x {
		y[i] = x[i]
		if i >= delay {
			y[i] += 0.3 * x[i-delay]
		}
	}
	return y
}

// Compress applies hard-knee compression above threshold, preserving
// the sign of negative samples.
func Compress(x []float64, threshold, ratio float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		a := math.Abs(v)
		if a <= threshold {
			y[i] = v
			continue
		}
		out := threshold + (a-threshold)/ratio
		if v < 0 {
			out = -out
		}
		y[i] = out
	}
	return y
}

// Distort applies tanh soft clipping for tube-like character
func Distort(x []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = math.Tanh(v*1.5) / 1.5
	}
	return y
}

const widenDelay = 20 // samples of side-signal delay

// StereoWiden builds a stereo image from mono using a short delayed
// side signal mixed in opposite phase per channel.
func StereoWiden(x []float64) (left, right []float64) {
	left = make([]float64, len(x))
	right = make([]float64, len(x))
	for i := range x {
		var delayed float64
		if i >= widenDelay {
			delayed = x[i-widenDelay]
		}
		left[i] = x[i]*0.8 + delayed*0.2
		right[i] = x[i]*0.8 - delayed*0.2
	}
	return left, right
}
