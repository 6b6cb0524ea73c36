// Package transcribe detects note events in audio by picking the
// dominant spectral peak per analysis frame and merging runs of equal
// pitch into notes.
package transcribe

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/bcatacb/LyricsBeats/internal/audio"
)

// Note is a detected note event
type Note struct {
	Pitch    int     `json:"pitch"` // MIDI note number
	Start    float64 `json:"start"` // seconds
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

const (
	frameSize = 4096
	hopSize   = 1024

	// Piano range: A0 through C8
	minFreq = 27.5
	maxFreq = 4186.0

	// Frames quieter than this fraction of the loudest frame are silence
	energyGate = 0.01

	// Runs shorter than this many frames are transient noise
	minRunFrames = 2
)

// Transcriber converts audio into note events
type Transcriber struct {
	gate float64
}

// New creates a transcriber with the default energy gate
func New() *Transcriber {
	return &Transcriber{gate: energyGate}
}

// Transcribe detects notes in a mono clip
func (t *Transcriber) Transcribe(clip *audio.Clip) []Note {
	if len(clip.Samples) < frameSize || clip.Rate <= 0 {
		return nil
	}

	win := window.Hann(frameSize)
	numFrames := (len(clip.Samples)-frameSize)/hopSize + 1

	type framePitch struct {
		pitch int
		mag   float64
	}
	frames := make([]framePitch, numFrames)

	buf := make([]float64, frameSize)
	var peakMag float64
	for i := 0; i < numFrames; i++ {
		off := i * hopSize
		for j := 0; j < frameSize; j++ {
			buf[j] = clip.Samples[off+j] * win[j]
		}
		spec := fft.FFTReal(buf)

		pitch, mag := dominantPitch(spec, clip.Rate)
		frames[i] = framePitch{pitch: pitch, mag: mag}
		if mag > peakMag {
			peakMag = mag
		}
	}

	if peakMag == 0 {
		return nil
	}

	// Gate quiet frames
	for i := range frames {
		if frames[i].mag < peakMag*t.gate {
			frames[i].pitch = -1
		}
	}

	// Merge consecutive equal pitches into note events
	var notes []Note
	hopSec := float64(hopSize) / float64(clip.Rate)

	runStart := 0
	for i := 1; i <= numFrames; i++ {
		if i < numFrames && frames[i].pitch == frames[runStart].pitch {
			continue
		}

		runLen := i - runStart
		pitch := frames[runStart].pitch
		if pitch >= 0 && runLen >= minRunFrames {
			var maxMag float64
			for j := runStart; j < i; j++ {
				if frames[j].mag > maxMag {
					maxMag = frames[j].mag
				}
			}
			velocity := int(40 + 87*maxMag/peakMag)
			if velocity > 127 {
				velocity = 127
			}
			notes = append(notes, Note{
				Pitch:    pitch,
				Start:    float64(runStart) * hopSec,
				Duration: float64(runLen) * hopSec,
				Velocity: velocity,
			})
		}
		runStart = i
	}

	return notes
}

// dominantPitch returns the MIDI pitch of the strongest spectral peak in
// the piano range, or -1 if none is found.
func dominantPitch(spec []complex128, rate int) (int, float64) {
	binHz := float64(rate) / frameSize
	lo := int(minFreq / binHz)
	hi := int(maxFreq / binHz)
	if hi > len(spec)/2 {
		hi = len(spec) / 2
	}
	if lo < 1 {
		lo = 1
	}

	bestBin, bestMag := -1, 0.0
	for k := lo; k <= hi; k++ {
		mag := math.Hypot(real(spec[k]), imag(spec[k]))
		if mag > bestMag {
			bestBin, bestMag = k, mag
		}
	}
	if bestBin < 0 {
		return -1, 0
	}

	// Parabolic interpolation around the peak for sub-bin accuracy
	freq := float64(bestBin) * binHz
	if bestBin > lo && bestBin < hi {
		m1 := math.Hypot(real(spec[bestBin-1]), imag(spec[bestBin-1]))
		p1 := math.Hypot(real(spec[bestBin+1]), imag(spec[bestBin+1]))
		denom := m1 - 2*bestMag + p1
		if math.Abs(denom) > 1e-12 {
			delta := 0.5 * (m1 - p1) / denom
			freq = (float64(bestBin) + delta) * binHz
		}
	}

	return freqToMIDI(freq), bestMag
}

// freqToMIDI converts a frequency in Hz to the nearest MIDI note number
func freqToMIDI(freq float64) int {
	if freq <= 0 {
		return -1
	}
	n := int(math.Round(69 + 12*math.Log2(freq/440)))
	if n < 0 || n > 127 {
		return -1
	}
	return n
}
