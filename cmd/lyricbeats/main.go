package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcatacb/LyricsBeats/internal/cache"
	"github.com/bcatacb/LyricsBeats/internal/config"
	"github.com/bcatacb/LyricsBeats/internal/lyrics"
	"github.com/bcatacb/LyricsBeats/internal/pipeline"
	"github.com/bcatacb/LyricsBeats/internal/progress"
	"github.com/bcatacb/LyricsBeats/internal/server"
	"github.com/bcatacb/LyricsBeats/internal/store"
	"github.com/bcatacb/LyricsBeats/internal/workspace"
)

var version = "2.0.0"

// cacheDir is where processed stems are cached between runs
const cacheDir = ".cache/stems"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lyricbeats",
	Short: "Transform instrumentals and generate rap lyrics",
	Long: `LyricsBeats transforms uploaded instrumentals with an audio effect
chain, separates stems with MIDI/MusicXML notation, and generates rap
lyrics in a chosen style.

Pipeline: audio → effect chain → stem separation → MIDI/MusicXML → lyrics`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LyricsBeats API server",
	Long: `Start the HTTP API backed by MongoDB.

Example:
  lyricbeats serve --port 8000`,
	RunE: runServe,
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Run the transform pipeline on a local audio file",
	Long: `Run the full transform offline: effect chain, stem separation and
MIDI/MusicXML export, without the API server or database.

Examples:
  lyricbeats transform --input beat.wav
  lyricbeats transform -i beat.mp3 -o out/ --seed 42`,
	RunE: runTransform,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the stem processing cache",
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show cache size",
	RunE:  runCacheSize,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached stem results",
	RunE:  runCacheClear,
}

var (
	// serve flags
	servePort    int
	serveUploads string

	// transform flags
	inputPath  string
	outputDir  string
	seed       int64
	verbose    bool
	noCache    bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheSizeCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().StringVar(&serveUploads, "uploads", "", "Uploads directory (overrides UPLOAD_DIR)")

	transformCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input audio file (WAV or MP3)")
	transformCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: alongside input)")
	transformCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for effect randomization (0 = random)")
	transformCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	transformCmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip stem cache (force fresh processing)")
	transformCmd.MarkFlagRequired("input")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveUploads != "" {
		cfg.UploadDir = serveUploads
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.Connect(ctx, cfg.MongoURL, cfg.DBName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(shutdownCtx); err != nil {
			logger.Error("close mongo", slog.Any("error", err))
		}
	}()

	ws, err := workspace.Open(cfg.UploadDir)
	if err != nil {
		return err
	}

	stemCache, err := cache.New(cacheDir)
	if err != nil {
		logger.Warn("stem cache disabled", slog.Any("error", err))
		stemCache = nil
	}

	p := pipeline.New(logger, stemCache)
	lg := lyrics.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	return server.New(cfg, st, ws, p, lg, logger).Run()
}

func runTransform(cmd *cobra.Command, args []string) error {
	reporter := progress.NewReporter(os.Stdout, verbose)

	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	transformedPath := filepath.Join(dir, base+"_transformed.wav")
	stemsDir := filepath.Join(dir, base+"_stems")

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var stemCache *cache.Cache
	if !noCache {
		c, err := cache.New(cacheDir)
		if err != nil {
			reporter.Warning("stem cache disabled: %s", err)
		} else {
			stemCache = c
		}
	}

	p := pipeline.New(logger, stemCache)
	result, err := p.Run(context.Background(), inputPath, transformedPath, stemsDir,
		pipeline.Options{Seed: seed}, reporter.Step)
	if err != nil {
		reporter.Error(err)
		return err
	}

	reporter.Update("pitch %+d semitones, tempo %.2fx",
		result.Params.PitchSemitones, result.Params.TempoFactor)
	reporter.Update("stems: %s", strings.Join(result.StemsCreated, ", "))
	if result.CacheHit {
		reporter.Update("stems restored from cache")
	}
	reporter.Done(stemsDir)
	return nil
}

func runCacheSize(cmd *cobra.Command, args []string) error {
	c, err := cache.New(cacheDir)
	if err != nil {
		return err
	}
	bytes, entries, err := c.Size()
	if err != nil {
		return err
	}
	fmt.Printf("Cache: %d entries, %.1f MB (%s, version %s)\n",
		entries, float64(bytes)/(1024*1024), cacheDir, cache.Version())
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := cache.New(cacheDir)
	if err != nil {
		return err
	}
	if err := c.Clear(); err != nil {
		return err
	}
	fmt.Println("Cache cleared.")
	return nil
}
