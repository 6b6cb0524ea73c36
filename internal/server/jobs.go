package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/bcatacb/LyricsBeats/internal/errors"
	"github.com/bcatacb/LyricsBeats/internal/pipeline"
	"github.com/bcatacb/LyricsBeats/internal/store"
	"github.com/bcatacb/LyricsBeats/internal/workspace"
	"github.com/google/uuid"
)

// Job status constants
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// jobRetention is how long finished jobs stay queryable
const jobRetention = 10 * time.Minute

// transformTimeout bounds a whole pipeline run
const transformTimeout = 10 * time.Minute

// Job represents a transform job for one project
type Job struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	Status    JobStatus        `json:"status"`
	Stage     string           `json:"stage"`
	Error     string           `json:"error,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`

	Updates chan string `json:"-"`
}

// JobManager runs transform jobs and tracks their state
type JobManager struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	pipeline *pipeline.Pipeline
	store    ProjectStore
	ws       *workspace.Workspace
	logger   *slog.Logger
}

// ProjectStore is the subset of the store the job manager needs
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	UpdateProject(ctx context.Context, id string, update store.ProjectUpdate) error
}

// NewJobManager creates a job manager
func NewJobManager(p *pipeline.Pipeline, s ProjectStore, ws *workspace.Workspace, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:     make(map[string]*Job),
		pipeline: p,
		store:    s,
		ws:       ws,
		logger:   logger,
	}
}

// Create registers a new pending job for a project
func (m *JobManager) Create(projectID string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    StatusPending,
		Stage:     "Queued",
		Updates:   make(chan string, 16),
		CreatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	return job
}

// Get retrieves a snapshot of a job by ID
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

func (m *JobManager) setStage(job *Job, stage string) {
	m.mu.Lock()
	job.Stage = stage
	m.mu.Unlock()

	// Drop updates when no listener is draining
	select {
	case job.Updates <- stage:
	default:
	}
}

func (m *JobManager) fail(job *Job, err error) {
	m.mu.Lock()
	job.Status = StatusFailed
	job.Error = err.Error()
	m.mu.Unlock()

	select {
	case job.Updates <- fmt.Sprintf("Error: %s", err):
	default:
	}
	m.logger.Error("transform job failed",
		slog.String("job", job.ID),
		slog.String("project", job.ProjectID),
		slog.Any("error", err))
}

// Process runs the transform pipeline for a job and persists the result
func (m *JobManager) Process(job *Job) {
	defer close(job.Updates)
	defer time.AfterFunc(jobRetention, func() {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
	})

	m.mu.Lock()
	job.Status = StatusProcessing
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), transformTimeout)
	defer cancel()

	project, err := m.store.GetProject(ctx, job.ProjectID)
	if err != nil {
		m.fail(job, fmt.Errorf("load project: %w", err))
		return
	}
	if project.OriginalFile == "" {
		m.fail(job, apperrors.ErrNoOriginalFile)
		return
	}

	inputPath, err := m.ws.File(project.OriginalFile)
	if err != nil {
		m.fail(job, err)
		return
	}
	if _, err := os.Stat(inputPath); err != nil {
		m.fail(job, fmt.Errorf("original file missing: %w", err))
		return
	}

	transformedPath := m.ws.TransformedFile(project.ID)
	stemsDir := m.ws.StemsDir(project.ID)

	result, err := m.pipeline.Run(ctx, inputPath, transformedPath, stemsDir, pipeline.Options{}, func(msg string) {
		m.setStage(job, msg)
	})
	if err != nil {
		m.fail(job, err)
		return
	}

	transformedFile := filepath.Base(transformedPath)
	stemsDirName := filepath.Base(stemsDir)
	transformationType := "advanced_stems_midi"
	complete := true

	update := store.ProjectUpdate{
		TransformedFile:        &transformedFile,
		StemsDirectory:         &stemsDirName,
		MIDIFiles:              result.MIDIFiles,
		MusicXMLFiles:          result.MusicXMLFiles,
		MainMIDI:               &result.MainMIDI,
		TransformationType:     &transformationType,
		TransformationComplete: &complete,
	}
	if err := m.store.UpdateProject(ctx, project.ID, update); err != nil {
		m.fail(job, fmt.Errorf("persist transform result: %w", err))
		return
	}

	m.mu.Lock()
	job.Result = result
	job.Status = StatusComplete
	job.Stage = "Complete!"
	m.mu.Unlock()

	select {
	case job.Updates <- "Complete!":
	default:
	}
	m.logger.Info("transform job complete",
		slog.String("job", job.ID),
		slog.String("project", job.ProjectID),
		slog.Int("midi_files", len(result.MIDIFiles)),
		slog.Bool("cache_hit", result.CacheHit))
}
