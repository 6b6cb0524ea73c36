package notation

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/bcatacb/LyricsBeats/internal/transcribe"
)

// divisions per quarter note; one unit is a sixteenth
const divisions = 4

// Score-partwise document structure, limited to the elements the
// exporter emits.
type scorePartwise struct {
	XMLName  xml.Name    `xml:"score-partwise"`
	Version  string      `xml:"version,attr"`
	Work     work        `xml:"work"`
	PartList partList    `xml:"part-list"`
	Parts    []scorePart `xml:"part"`
}

type work struct {
	Title string `xml:"work-title"`
}

type partList struct {
	ScoreParts []scorePartDecl `xml:"score-part"`
}

type scorePartDecl struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type scorePart struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Direction  *direction  `xml:"direction,omitempty"`
	Notes      []xmlNote   `xml:"note"`
}

type attributes struct {
	Divisions int           `xml:"divisions"`
	Key       keySignature  `xml:"key"`
	Time      timeSignature `xml:"time"`
	Clef      clef          `xml:"clef"`
}

type keySignature struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

type timeSignature struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type clef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type direction struct {
	Type  directionType `xml:"direction-type"`
	Sound sound         `xml:"sound"`
}

type directionType struct {
	Metronome metronome `xml:"metronome"`
}

type metronome struct {
	BeatUnit  string `xml:"beat-unit"`
	PerMinute int    `xml:"per-minute"`
}

type sound struct {
	Tempo int `xml:"tempo,attr"`
}

type xmlNote struct {
	Rest     *struct{} `xml:"rest,omitempty"`
	Pitch    *pitch    `xml:"pitch,omitempty"`
	Duration int       `xml:"duration"`
	Type     string    `xml:"type,omitempty"`
}

type pitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

// WriteMusicXML renders notes as a single-part score-partwise document.
// Notes are quantized to sixteenths; overlaps are flattened into a
// monophonic line and gaps become rests.
func WriteMusicXML(path, title string, notes []transcribe.Note, meta ScoreMeta) error {
	bpm := meta.bpm()
	unitSec := 60 / (bpm * divisions)

	sorted := make([]transcribe.Note, len(notes))
	copy(sorted, notes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	// Quantize into a monophonic event list in sixteenth units
	type span struct {
		pitch    int // -1 for rest
		duration int
	}
	var spans []span
	cursor := 0
	for _, n := range sorted {
		start := int(math.Round(n.Start / unitSec))
		end := int(math.Round((n.Start + n.Duration) / unitSec))
		if end <= start {
			end = start + 1
		}
		if start < cursor {
			// Overlapping note in a monophonic line: keep the earlier one
			continue
		}
		if start > cursor {
			spans = append(spans, span{pitch: -1, duration: start - cursor})
		}
		spans = append(spans, span{pitch: n.Pitch, duration: end - start})
		cursor = end
	}

	mode := "major"
	if meta.Minor {
		mode = "minor"
	}

	const unitsPerMeasure = 4 * divisions // 4/4

	var measures []measure
	current := measure{Number: 1}
	used := 0

	flush := func() {
		measures = append(measures, current)
		current = measure{Number: len(measures) + 1}
		used = 0
	}

	for _, sp := range spans {
		remaining := sp.duration
		for remaining > 0 {
			room := unitsPerMeasure - used
			take := remaining
			if take > room {
				take = room
			}

			note := xmlNote{Duration: take, Type: durationType(take)}
			if sp.pitch < 0 {
				note.Rest = &struct{}{}
			} else {
				note.Pitch = midiToPitch(sp.pitch)
			}
			current.Notes = append(current.Notes, note)

			used += take
			remaining -= take
			if used == unitsPerMeasure {
				flush()
			}
		}
	}
	// Pad the final measure with a rest
	if used > 0 {
		pad := unitsPerMeasure - used
		current.Notes = append(current.Notes, xmlNote{
			Rest: &struct{}{}, Duration: pad, Type: durationType(pad),
		})
		flush()
	}
	if len(measures) == 0 {
		measures = append(measures, measure{
			Number: 1,
			Notes: []xmlNote{{
				Rest: &struct{}{}, Duration: unitsPerMeasure, Type: "whole",
			}},
		})
	}

	measures[0].Attributes = &attributes{
		Divisions: divisions,
		Key:       keySignature{Fifths: int(meta.KeySharps), Mode: mode},
		Time:      timeSignature{Beats: 4, BeatType: 4},
		Clef:      clef{Sign: "G", Line: 2},
	}
	measures[0].Direction = &direction{
		Type:  directionType{Metronome: metronome{BeatUnit: "quarter", PerMinute: int(bpm)}},
		Sound: sound{Tempo: int(bpm)},
	}

	doc := scorePartwise{
		Version:  "3.1",
		Work:     work{Title: title},
		PartList: partList{ScoreParts: []scorePartDecl{{ID: "P1", Name: title}}},
		Parts:    []scorePart{{ID: "P1", Measures: measures}},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create musicxml: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode musicxml: %w", err)
	}
	return enc.Close()
}

var stepNames = [12]struct {
	step  string
	alter int
}{
	{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
	{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
}

func midiToPitch(p int) *pitch {
	n := stepNames[p%12]
	return &pitch{Step: n.step, Alter: n.alter, Octave: p/12 - 1}
}

// durationType maps sixteenth units to the closest notated value
func durationType(units int) string {
	switch {
	case units >= 16:
		return "whole"
	case units >= 8:
		return "half"
	case units >= 4:
		return "quarter"
	case units >= 2:
		return "eighth"
	default:
		return "16th"
	}
}
