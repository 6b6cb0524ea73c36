package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/bcatacb/LyricsBeats/internal/audio"
	"github.com/bcatacb/LyricsBeats/internal/cache"
	apperrors "github.com/bcatacb/LyricsBeats/internal/errors"
)

func writeTestInput(t *testing.T, dir string) string {
	t.Helper()
	rate := 8000
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 0.6 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	path := filepath.Join(dir, "input.wav")
	if err := audio.WriteWAV(path, samples, rate); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir)
	transformed := filepath.Join(dir, "out_transformed.wav")
	stemsDir := filepath.Join(dir, "out_stems")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(logger, nil)

	var messages []string
	result, err := p.Run(context.Background(), input, transformed, stemsDir,
		Options{Seed: 42}, func(msg string) { messages = append(messages, msg) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(transformed); err != nil {
		t.Errorf("transformed file missing: %v", err)
	}
	if result.TransformedFile != "out_transformed.wav" {
		t.Errorf("TransformedFile = %q", result.TransformedFile)
	}
	if result.MainMIDI != "full_song.mid" {
		t.Errorf("MainMIDI = %q", result.MainMIDI)
	}
	if _, err := os.Stat(filepath.Join(stemsDir, "full_song.mid")); err != nil {
		t.Errorf("main MIDI missing: %v", err)
	}
	if len(result.StemsCreated) != 5 {
		t.Errorf("stems created = %v", result.StemsCreated)
	}
	if result.Analysis == nil {
		t.Fatal("analysis missing")
	}
	if result.Params.PitchSemitones == 0 {
		t.Error("pitch shift must not be zero")
	}

	// Manifest and info file land beside the stems
	data, err := os.ReadFile(filepath.Join(stemsDir, manifestName))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	var manifest Result
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if _, err := os.Stat(filepath.Join(stemsDir, infoName)); err != nil {
		t.Errorf("info file missing: %v", err)
	}

	if len(messages) == 0 {
		t.Error("no progress messages reported")
	}
}

func TestPipelineRunSeedReproducible(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(logger, nil)

	run := func(tag string) audio.ChainParams {
		result, err := p.Run(context.Background(), input,
			filepath.Join(dir, tag+"_transformed.wav"),
			filepath.Join(dir, tag+"_stems"),
			Options{Seed: 7}, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return result.Params
	}

	if a, b := run("a"), run("b"); a != b {
		t.Errorf("same seed gave different params: %v vs %v", a, b)
	}
}

func TestPipelineCacheHit(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := cache.New(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	p := New(logger, c)

	first, err := p.Run(context.Background(), input,
		filepath.Join(dir, "first_transformed.wav"),
		filepath.Join(dir, "first_stems"), Options{Seed: 1}, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.CacheHit {
		t.Error("first run should not hit the cache")
	}

	second, err := p.Run(context.Background(), input,
		filepath.Join(dir, "second_transformed.wav"),
		filepath.Join(dir, "second_stems"), Options{Seed: 2}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.CacheHit {
		t.Error("second run with identical input should hit the cache")
	}
	if second.MainMIDI != first.MainMIDI {
		t.Errorf("cached result diverged: %q vs %q", second.MainMIDI, first.MainMIDI)
	}
	if _, err := os.Stat(filepath.Join(dir, "second_stems", "full_song.mid")); err != nil {
		t.Errorf("cached stems not restored: %v", err)
	}
}

func TestPipelineSkipsUnwritableStemNotation(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir)
	stemsDir := filepath.Join(dir, "out_stems")

	// A directory squatting on the melody MIDI path makes that one
	// write fail while every other stem stays writable.
	if err := os.MkdirAll(filepath.Join(stemsDir, "melody.mid"), 0755); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(logger, nil)

	result, err := p.Run(context.Background(), input,
		filepath.Join(dir, "out_transformed.wav"), stemsDir,
		Options{Seed: 42}, nil)
	if err != nil {
		t.Fatalf("one bad stem should not fail the run: %v", err)
	}

	for _, name := range result.MIDIFiles {
		if name == "melody.mid" {
			t.Error("melody.mid should have been skipped")
		}
	}
	if len(result.MIDIFiles) != 4 {
		t.Errorf("MIDIFiles = %v, want the 4 remaining stems", result.MIDIFiles)
	}
	if len(result.StemsCreated) != 5 {
		t.Errorf("stems created = %v, want all 5 wavs", result.StemsCreated)
	}
}

func TestStemFailureClassification(t *testing.T) {
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	if err := p.stemFailure("notation", "bass", fmt.Errorf("disk full")); err != nil {
		t.Errorf("notation failures should be skippable, got %v", err)
	}

	err := p.stemFailure("stems", "bass", fmt.Errorf("disk full"))
	var serr *apperrors.StageError
	if !errors.As(err, &serr) {
		t.Fatalf("want a StageError, got %v", err)
	}
	if serr.IsRecoverable() {
		t.Error("stem separation failures must abort the run")
	}
}

func TestPipelineRunCancelled(t *testing.T) {
	dir := t.TempDir()
	input := writeTestInput(t, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, input,
		filepath.Join(dir, "c_transformed.wav"),
		filepath.Join(dir, "c_stems"), Options{Seed: 1}, nil)
	if err == nil {
		t.Fatal("cancelled context should abort the run")
	}
}

func TestPipelineRunMissingInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(logger, nil)

	dir := t.TempDir()
	_, err := p.Run(context.Background(), filepath.Join(dir, "nope.wav"),
		filepath.Join(dir, "t.wav"), filepath.Join(dir, "s"), Options{}, nil)
	if err == nil {
		t.Fatal("missing input should fail")
	}
}
