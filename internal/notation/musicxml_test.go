package notation

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/bcatacb/LyricsBeats/internal/transcribe"
)

func readScore(t *testing.T, path string) *scorePartwise {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc scorePartwise
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &doc
}

func TestWriteMusicXML(t *testing.T) {
	// Quarter notes at 120 BPM: 0.5s each
	notes := []transcribe.Note{
		{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 100},
		{Pitch: 64, Start: 0.5, Duration: 0.5, Velocity: 100},
		{Pitch: 67, Start: 1.0, Duration: 0.5, Velocity: 100},
		{Pitch: 72, Start: 1.5, Duration: 0.5, Velocity: 100},
	}

	path := filepath.Join(t.TempDir(), "out.xml")
	if err := WriteMusicXML(path, "melody", notes, ScoreMeta{BPM: 120}); err != nil {
		t.Fatalf("WriteMusicXML: %v", err)
	}

	doc := readScore(t, path)
	if doc.Work.Title != "melody" {
		t.Errorf("title = %q", doc.Work.Title)
	}
	if len(doc.Parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(doc.Parts))
	}

	measures := doc.Parts[0].Measures
	if len(measures) != 1 {
		t.Fatalf("four quarter notes should fill exactly one 4/4 measure, got %d", len(measures))
	}

	first := measures[0]
	if first.Attributes == nil {
		t.Fatal("first measure missing attributes")
	}
	if first.Attributes.Divisions != 4 {
		t.Errorf("divisions = %d, want 4", first.Attributes.Divisions)
	}
	if first.Attributes.Time.Beats != 4 || first.Attributes.Time.BeatType != 4 {
		t.Errorf("time signature = %d/%d", first.Attributes.Time.Beats, first.Attributes.Time.BeatType)
	}
	if first.Direction == nil || first.Direction.Type.Metronome.PerMinute != 120 {
		t.Error("metronome direction missing or wrong tempo")
	}

	if len(first.Notes) != 4 {
		t.Fatalf("notes = %d, want 4", len(first.Notes))
	}
	for i, n := range first.Notes {
		if n.Rest != nil {
			t.Errorf("note %d is a rest", i)
		}
		if n.Duration != 4 || n.Type != "quarter" {
			t.Errorf("note %d: duration %d type %q, want quarter", i, n.Duration, n.Type)
		}
	}
	if p := first.Notes[0].Pitch; p == nil || p.Step != "C" || p.Octave != 4 {
		t.Errorf("first note pitch = %+v, want C4", first.Notes[0].Pitch)
	}
}

func TestWriteMusicXMLInsertsRests(t *testing.T) {
	// A one-beat gap between the notes becomes a quarter rest
	notes := []transcribe.Note{
		{Pitch: 60, Start: 0, Duration: 0.5, Velocity: 100},
		{Pitch: 62, Start: 1.0, Duration: 0.5, Velocity: 100},
	}

	path := filepath.Join(t.TempDir(), "rests.xml")
	if err := WriteMusicXML(path, "gaps", notes, ScoreMeta{BPM: 120}); err != nil {
		t.Fatalf("WriteMusicXML: %v", err)
	}

	doc := readScore(t, path)
	var rests int
	for _, m := range doc.Parts[0].Measures {
		for _, n := range m.Notes {
			if n.Rest != nil {
				rests++
			}
		}
	}
	if rests == 0 {
		t.Error("expected at least one rest for the gap")
	}
}

func TestWriteMusicXMLEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xml")
	if err := WriteMusicXML(path, "empty", nil, ScoreMeta{}); err != nil {
		t.Fatalf("WriteMusicXML: %v", err)
	}

	doc := readScore(t, path)
	measures := doc.Parts[0].Measures
	if len(measures) != 1 {
		t.Fatalf("empty score should still have one measure, got %d", len(measures))
	}
	if len(measures[0].Notes) != 1 || measures[0].Notes[0].Rest == nil {
		t.Error("empty score should contain a whole-measure rest")
	}
}

func TestMidiToPitch(t *testing.T) {
	tests := []struct {
		midi   int
		step   string
		alter  int
		octave int
	}{
		{60, "C", 0, 4},
		{61, "C", 1, 4},
		{69, "A", 0, 4},
		{21, "A", 0, 0},
	}
	for _, tt := range tests {
		p := midiToPitch(tt.midi)
		if p.Step != tt.step || p.Alter != tt.alter || p.Octave != tt.octave {
			t.Errorf("midiToPitch(%d) = %+v, want %s alter %d oct %d",
				tt.midi, p, tt.step, tt.alter, tt.octave)
		}
	}
}

func TestDurationType(t *testing.T) {
	tests := []struct {
		units int
		want  string
	}{
		{1, "16th"}, {2, "eighth"}, {4, "quarter"}, {8, "half"}, {16, "whole"},
	}
	for _, tt := range tests {
		if got := durationType(tt.units); got != tt.want {
			t.Errorf("durationType(%d) = %q, want %q", tt.units, got, tt.want)
		}
	}
}
