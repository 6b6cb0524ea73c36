// Package analysis estimates tempo and musical key from note events.
package analysis

import (
	"math"

	"gopkg.in/music-theory.v0/key"
	"gopkg.in/music-theory.v0/note"

	"github.com/bcatacb/LyricsBeats/internal/transcribe"
)

// Result contains audio analysis results
type Result struct {
	BPM           float64 `json:"bpm"`
	BPMConfidence float64 `json:"bpm_confidence"`
	Key           string  `json:"key"`
	KeyConfidence float64 `json:"key_confidence"`

	// Detected is the parsed key driving notation key signatures. Root
	// is note.Nil when no key could be estimated.
	Detected key.Key `json:"-"`
}

// DefaultResult returns default values when analysis has too little to work with
func DefaultResult() *Result {
	return &Result{
		BPM:           120,
		BPMConfidence: 0,
		Key:           "",
		KeyConfidence: 0,
	}
}

// Analyze estimates BPM from inter-onset intervals and key from a
// duration-weighted pitch-class profile.
func Analyze(notes []transcribe.Note) *Result {
	result := DefaultResult()

	if bpm, conf, ok := estimateBPM(notes); ok {
		result.BPM = bpm
		result.BPMConfidence = conf
	}
	if k, conf, ok := estimateKey(notes); ok {
		result.Detected = k
		result.Key = keyName(k)
		result.KeyConfidence = conf
	}
	return result
}

const (
	minBPM = 60
	maxBPM = 200
	// histogram bucket width in BPM
	bpmBucket = 2
)

func estimateBPM(notes []transcribe.Note) (float64, float64, bool) {
	if len(notes) < 4 {
		return 0, 0, false
	}

	buckets := make(map[int]int)
	total := 0
	for i := 1; i < len(notes); i++ {
		ioi := notes[i].Start - notes[i-1].Start
		if ioi < 1e-3 {
			continue
		}
		bpm := 60 / ioi
		// Fold octave errors into the usable tempo range
		for bpm < minBPM {
			bpm *= 2
		}
		for bpm > maxBPM {
			bpm /= 2
		}
		buckets[int(bpm)/bpmBucket]++
		total++
	}
	if total == 0 {
		return 0, 0, false
	}

	bestBucket, bestCount := 0, 0
	for b, c := range buckets {
		if c > bestCount {
			bestBucket, bestCount = b, c
		}
	}

	bpm := float64(bestBucket*bpmBucket + bpmBucket/2)
	conf := float64(bestCount) / float64(total)
	return bpm, conf, true
}

// Krumhansl-Kessler key profiles
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func estimateKey(notes []transcribe.Note) (key.Key, float64, bool) {
	if len(notes) == 0 {
		return key.Key{}, 0, false
	}

	var profile [12]float64
	for _, n := range notes {
		if n.Pitch >= 0 {
			profile[n.Pitch%12] += n.Duration
		}
	}

	type candidate struct {
		key  key.Key
		corr float64
	}
	best := candidate{corr: math.Inf(-1)}
	second := candidate{corr: math.Inf(-1)}

	consider := func(c candidate) {
		if c.corr > best.corr {
			second = best
			best = c
		} else if c.corr > second.corr {
			second = c
		}
	}

	for root := 0; root < 12; root++ {
		for _, mode := range []string{"major", "minor"} {
			k := key.Of(pitchClassNames[root] + " " + mode)
			if k.Root == note.Nil {
				continue
			}
			reference := majorProfile
			if k.Mode == key.Minor {
				reference = minorProfile
			}
			consider(candidate{key: k, corr: correlate(profile, reference, root)})
		}
	}

	if best.key.Root == note.Nil || math.IsInf(best.corr, -1) || math.IsNaN(best.corr) {
		return key.Key{}, 0, false
	}

	conf := best.corr
	if !math.IsInf(second.corr, -1) {
		conf = clamp01((best.corr - second.corr) * 5)
	}
	return best.key, conf, true
}

// keyName spells the key root through the theory library so the name
// stays consistent with the parsed Root and accidental symbol.
func keyName(k key.Key) string {
	mode := "major"
	if k.Mode == key.Minor {
		mode = "minor"
	}
	return k.Root.String(k.AdjSymbol) + " " + mode
}

// correlate computes the Pearson correlation between the observed
// profile and a reference profile rotated to the given root.
func correlate(observed [12]float64, reference [12]float64, root int) float64 {
	var meanO, meanR float64
	for i := 0; i < 12; i++ {
		meanO += observed[i]
		meanR += reference[i]
	}
	meanO /= 12
	meanR /= 12

	var num, denO, denR float64
	for i := 0; i < 12; i++ {
		o := observed[i] - meanO
		r := reference[(i-root+12)%12] - meanR
		num += o * r
		denO += o * o
		denR += r * r
	}
	if denO == 0 || denR == 0 {
		return math.Inf(-1)
	}
	return num / math.Sqrt(denO*denR)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
