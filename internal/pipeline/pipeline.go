// Package pipeline orchestrates the transform: effect chain, stem
// separation, transcription, notation export and analysis.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/bcatacb/LyricsBeats/internal/analysis"
	"github.com/bcatacb/LyricsBeats/internal/audio"
	"github.com/bcatacb/LyricsBeats/internal/cache"
	apperrors "github.com/bcatacb/LyricsBeats/internal/errors"
	"github.com/bcatacb/LyricsBeats/internal/notation"
	"github.com/bcatacb/LyricsBeats/internal/stems"
	"github.com/bcatacb/LyricsBeats/internal/transcribe"
)

// manifestName is the machine-readable result stored beside the stems
const manifestName = "result.json"

// infoName is a human-readable summary stored beside the stems
const infoName = "transformation_info.txt"

// Options controls a single pipeline run
type Options struct {
	// Seed makes the randomized effect parameters reproducible; 0 draws
	// from the clock.
	Seed int64
}

// Progress receives stage announcements for SSE/CLI reporting
type Progress func(message string)

// Result holds everything a transform run produced
type Result struct {
	TransformedFile string            `json:"transformed_file"`
	MainMIDI        string            `json:"main_midi"`
	MIDIFiles       []string          `json:"midi_files"`
	MusicXMLFiles   []string          `json:"musicxml_files"`
	StemsCreated    []string          `json:"stems_created"`
	Analysis        *analysis.Result  `json:"analysis"`
	Params          audio.ChainParams `json:"params"`
	CacheHit        bool              `json:"-"`
}

// Pipeline runs transforms
type Pipeline struct {
	logger *slog.Logger
	cache  *cache.Cache // optional
}

// New creates a pipeline. The cache may be nil to disable caching.
func New(logger *slog.Logger, c *cache.Cache) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, cache: c}
}

// Run executes the full transform for inputPath, writing the transformed
// audio to transformedPath and all stem artifacts into stemsDir.
func (p *Pipeline) Run(ctx context.Context, inputPath, transformedPath, stemsDir string, opts Options, progress Progress) (*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	progress("Validating input file...")
	format, err := audio.ValidateInput(inputPath)
	if err != nil {
		return nil, err
	}
	progress(fmt.Sprintf("Valid %s file", format))

	clip, err := audio.Decode(inputPath)
	if err != nil {
		return nil, apperrors.NewStageError("decode", inputPath, err)
	}
	p.logger.Info("loaded audio",
		slog.Float64("seconds", clip.Duration()),
		slog.Int("rate", clip.Rate))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Effect chain (always runs; parameters are randomized per job)
	progress("Applying effect chain...")
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	params := audio.RandomChainParams(rand.New(rand.NewSource(seed)))
	p.logger.Info("effect chain parameters",
		slog.Int("pitch_semitones", params.PitchSemitones),
		slog.Float64("tempo_factor", params.TempoFactor))

	transformed := audio.ApplyChain(clip, params)
	if err := audio.WriteStereoWAV(transformedPath, transformed.Left, transformed.Right, transformed.Rate); err != nil {
		return nil, apperrors.NewStageError("effects", inputPath, err)
	}
	progress(fmt.Sprintf("Applied pitch shift %+d semitones, tempo %.2fx",
		params.PitchSemitones, params.TempoFactor))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stems and notation, served from cache when the same content was
	// already processed.
	result, err := p.extractStems(ctx, inputPath, clip, stemsDir, progress)
	if err != nil {
		return nil, err
	}

	result.TransformedFile = filepath.Base(transformedPath)
	result.Params = params

	progress("Complete!")
	return result, nil
}

func (p *Pipeline) extractStems(ctx context.Context, inputPath string, clip *audio.Clip, stemsDir string, progress Progress) (*Result, error) {
	var cacheKey string
	if p.cache != nil {
		key, err := cache.KeyForFile(inputPath)
		if err == nil {
			cacheKey = key
			if entry, ok := p.cache.Get(key); ok {
				progress("Restoring stems from cache...")
				if err := p.cache.Restore(entry, stemsDir); err == nil {
					if result, err := loadManifest(stemsDir); err == nil {
						result.CacheHit = true
						p.logger.Info("stem cache hit", slog.String("key", key))
						return result, nil
					}
				}
				p.logger.Warn("stem cache entry unusable, reprocessing", slog.String("key", key))
			}
		}
	}

	if err := os.MkdirAll(stemsDir, 0755); err != nil {
		return nil, fmt.Errorf("create stems dir: %w", err)
	}

	result := &Result{}
	transcriber := transcribe.New()

	// Full-mix transcription drives analysis and the main MIDI file
	progress("Transcribing full mix to MIDI...")
	mixNotes := transcriber.Transcribe(clip)
	result.Analysis = analysis.Analyze(mixNotes)
	progress(fmt.Sprintf("BPM: %.0f, Key: %s", result.Analysis.BPM, result.Analysis.Key))

	meta := notation.ScoreMetaFor(result.Analysis.BPM, result.Analysis.Detected)

	mainMIDI := filepath.Join(stemsDir, "full_song.mid")
	if err := notation.WriteMIDI(mainMIDI, "full_song", mixNotes, meta); err != nil {
		return nil, apperrors.NewStageError("notation", "full_song", err)
	}
	result.MainMIDI = "full_song.mid"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress("Separating stems...")
	bands := stems.Split(clip)

	for _, stem := range bands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress(fmt.Sprintf("Processing stem: %s", stem.Name))

		stemClip := &audio.Clip{Samples: stem.Samples, Rate: clip.Rate}
		wavPath := filepath.Join(stemsDir, stem.Name+".wav")
		if err := audio.WriteWAV(wavPath, audio.Normalize(stem.Samples), clip.Rate); err != nil {
			p.logger.Warn("failed to write stem audio",
				slog.String("stem", stem.Name), slog.Any("error", err))
			continue
		}
		result.StemsCreated = append(result.StemsCreated, stem.Name)

		notes := transcriber.Transcribe(stemClip)
		midiName := stem.Name + ".mid"
		if err := notation.WriteMIDI(filepath.Join(stemsDir, midiName), stem.Name, notes, meta); err != nil {
			if err := p.stemFailure("notation", stem.Name, err); err != nil {
				return nil, err
			}
			continue
		}
		result.MIDIFiles = append(result.MIDIFiles, midiName)

		xmlName := stem.Name + ".xml"
		if err := notation.WriteMusicXML(filepath.Join(stemsDir, xmlName), stem.Name, notes, meta); err != nil {
			if err := p.stemFailure("notation", stem.Name, err); err != nil {
				return nil, err
			}
			continue
		}
		result.MusicXMLFiles = append(result.MusicXMLFiles, xmlName)
	}

	if err := writeManifest(stemsDir, result); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := writeInfoFile(stemsDir, result); err != nil {
		p.logger.Warn("failed to write info file", slog.Any("error", err))
	}

	if p.cache != nil && cacheKey != "" {
		if _, err := p.cache.Put(cacheKey, stemsDir); err != nil {
			p.logger.Warn("failed to cache stems", slog.Any("error", err))
		}
	}

	return result, nil
}

// stemFailure classifies a per-stem failure by stage. Recoverable
// stages log and return nil so the caller skips just that stem; any
// other stage aborts the run with the typed error.
func (p *Pipeline) stemFailure(stage, stem string, cause error) error {
	serr := apperrors.NewStageError(stage, stem, cause)
	if !serr.IsRecoverable() {
		return serr
	}
	p.logger.Warn("skipping stem artifact",
		slog.String("stem", stem),
		slog.String("stage", stage),
		slog.Any("error", cause))
	return nil
}

func writeManifest(stemsDir string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stemsDir, manifestName), data, 0644)
}

func loadManifest(stemsDir string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(stemsDir, manifestName))
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func writeInfoFile(stemsDir string, result *Result) error {
	f, err := os.Create(filepath.Join(stemsDir, infoName))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(f, "Audio Transformation Information")
	fmt.Fprintln(f, "========================================")
	fmt.Fprintln(f)
	fmt.Fprintln(f, "Generated MIDI Files:")
	for _, m := range result.MIDIFiles {
		fmt.Fprintf(f, "  - %s\n", m)
	}
	fmt.Fprintln(f)
	fmt.Fprintln(f, "Generated MusicXML Files:")
	for _, m := range result.MusicXMLFiles {
		fmt.Fprintf(f, "  - %s\n", m)
	}
	fmt.Fprintln(f)
	fmt.Fprintln(f, "Transformation Type: Advanced Stem Separation with MIDI Conversion")
	fmt.Fprintln(f, "Processing Method: Frequency-based stem extraction + spectral note transcription")
	return nil
}
