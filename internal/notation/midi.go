// Package notation renders note events as Standard MIDI Files and
// MusicXML scores.
package notation

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gopkg.in/music-theory.v0/key"
	"gopkg.in/music-theory.v0/note"

	"github.com/bcatacb/LyricsBeats/internal/transcribe"
)

const ticksPerQuarter = 480

// ScoreMeta carries the notation defaults applied to every exported file.
// Zero values fall back to C major, 4/4, 120 BPM.
type ScoreMeta struct {
	BPM       float64
	KeySharps int8 // sharps (positive) or flats (negative)
	Minor     bool
}

func (m ScoreMeta) bpm() float64 {
	if m.BPM <= 0 {
		return 120
	}
	return m.BPM
}

// ScoreMetaFor derives notation defaults from an analyzed key. The
// signature walks the circle of fifths from the key's root class; minor
// keys sign as their relative major. An unparsed key (Root == note.Nil)
// keeps the C major default.
func ScoreMetaFor(bpm float64, k key.Key) ScoreMeta {
	meta := ScoreMeta{BPM: bpm}
	if k.Root == note.Nil {
		return meta
	}

	pc := int(k.Root - note.C)
	if k.Mode == key.Minor {
		meta.Minor = true
		pc = (pc + 3) % 12
	}
	fifths := (pc * 7) % 12
	if fifths > 6 {
		fifths -= 12
	}
	meta.KeySharps = int8(fifths)
	return meta
}

// WriteMIDI renders notes into a single-track SMF at path
func WriteMIDI(path, name string, notes []transcribe.Note, meta ScoreMeta) error {
	clock := smf.MetricTicks(ticksPerQuarter)
	s := smf.New()
	s.TimeFormat = clock

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(meta.bpm()))
	tr.Add(0, smf.MetaKey(0, !meta.Minor, uint8(abs8(meta.KeySharps)), meta.KeySharps < 0))

	secPerTick := 60 / (meta.bpm() * ticksPerQuarter)

	// Flatten note on/off boundaries into a single sorted event list
	type boundary struct {
		tick uint32
		on   bool
		note transcribe.Note
	}
	events := make([]boundary, 0, len(notes)*2)
	for _, n := range notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			continue
		}
		start := uint32(n.Start / secPerTick)
		end := uint32((n.Start + n.Duration) / secPerTick)
		if end <= start {
			end = start + 1
		}
		events = append(events, boundary{tick: start, on: true, note: n})
		events = append(events, boundary{tick: end, on: false, note: n})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		// Note-offs before note-ons at the same tick
		return !events[i].on && events[j].on
	})

	var cursor uint32
	for _, ev := range events {
		delta := ev.tick - cursor
		cursor = ev.tick
		if ev.on {
			tr.Add(delta, midi.NoteOn(0, uint8(ev.note.Pitch), uint8(ev.note.Velocity)))
		} else {
			tr.Add(delta, midi.NoteOff(0, uint8(ev.note.Pitch)))
		}
	}
	tr.Close(0)
	s.Add(tr)

	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

func abs8(v int8) int8 {
	if v < 0 {
		return -v
	}
	return v
}
