package server

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bcatacb/LyricsBeats/internal/audio"
	apperrors "github.com/bcatacb/LyricsBeats/internal/errors"
	"github.com/bcatacb/LyricsBeats/internal/lyrics"
	"github.com/bcatacb/LyricsBeats/internal/store"
)

const maxUploadSize = 100 * 1024 * 1024 // 100MB

// allowedContentTypes is the upload whitelist
var allowedContentTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/mp3":   true,
	"audio/x-wav": true,
}

// handleRoot returns the API banner
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "LyricsBeats API is running",
		"version": "2.0",
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": apiVersion,
		"service": "LyricsBeats API",
	})
}

type statusCheckRequest struct {
	ClientName string `json:"client_name"`
}

func (s *Server) handleCreateStatusCheck(w http.ResponseWriter, r *http.Request) {
	var req statusCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientName == "" {
		s.writeError(w, http.StatusBadRequest, "client_name is required")
		return
	}

	check := store.NewStatusCheck(req.ClientName)
	if err := s.store.CreateStatusCheck(r.Context(), check); err != nil {
		s.serverError(w, "create status check", err)
		return
	}
	s.logger.Info("created status check", "client", req.ClientName)
	s.writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleListStatusChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.store.ListStatusChecks(r.Context())
	if err != nil {
		s.serverError(w, "list status checks", err)
		return
	}
	if checks == nil {
		checks = []store.StatusCheck{}
	}
	s.writeJSON(w, http.StatusOK, checks)
}

type projectCreateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := store.NewProject(req.Name)
	if err := s.store.CreateProject(r.Context(), project); err != nil {
		s.serverError(w, "create project", err)
		return
	}
	s.logger.Info("created project", "name", project.Name, "id", project.ID)
	s.writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.serverError(w, "list projects", err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	s.writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, project)
}

// handleUpload saves an uploaded instrumental for a project
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "File too large. Maximum size is 100MB.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Please upload an audio file.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedContentTypes[contentType] && ext != ".wav" && ext != ".mp3" {
		s.writeError(w, http.StatusBadRequest, "Invalid file type. Please upload audio files only.")
		return
	}
	if ext != ".wav" && ext != ".mp3" {
		s.writeError(w, http.StatusBadRequest, "Unsupported format. Please upload a WAV or MP3 file.")
		return
	}

	// Sniff the header so mislabeled uploads fail early
	head := make([]byte, 12)
	n, _ := io.ReadFull(file, head)
	if audio.SniffHeader(head[:n]) == audio.FormatUnknown {
		s.writeError(w, http.StatusBadRequest, "File does not look like WAV or MP3 audio.")
		return
	}

	filename := project.ID + "_original" + ext
	path, err := s.ws.File(filename)
	if err != nil {
		s.serverError(w, "resolve upload path", err)
		return
	}

	dst, err := os.Create(path)
	if err != nil {
		s.serverError(w, "save upload", err)
		return
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		s.serverError(w, "save upload", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		s.serverError(w, "save upload", err)
		return
	}

	if err := s.store.UpdateProject(r.Context(), project.ID, store.ProjectUpdate{
		OriginalFile: &filename,
	}); err != nil {
		s.serverError(w, "update project", err)
		return
	}

	s.logger.Info("uploaded file", "project", project.ID, "filename", filename)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":  "File uploaded successfully",
		"filename": filename,
	})
}

// handleTransform starts an async transform job for a project
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if project.OriginalFile == "" {
		s.preconditionError(w, apperrors.ErrNoOriginalFile)
		return
	}

	path, err := s.ws.File(project.OriginalFile)
	if err != nil {
		s.serverError(w, "resolve original file", err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "Original file not found")
		return
	}

	job := s.jobs.Create(project.ID)
	go s.jobs.Process(job)

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Transform started",
		"job_id":  job.ID,
	})
}

// handleGetJob returns the current job state as JSON
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleJobEvents streams job progress via SSE
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job := s.jobs.Get(jobID)
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case update, open := <-job.Updates:
			if !open {
				status := StatusComplete
				if final := s.jobs.Get(jobID); final != nil {
					status = final.Status
				}
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", status)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", update)
			flusher.Flush()

			if current := s.jobs.Get(jobID); current != nil &&
				(current.Status == StatusComplete || current.Status == StatusFailed) {
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", current.Status)
				flusher.Flush()
				return
			}
		}
	}
}

type lyricsRequest struct {
	ProjectID    string `json:"project_id"`
	Style        string `json:"style"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
	UserStyleID  string `json:"user_style_id,omitempty"`
}

type lyricsResponse struct {
	Lyrics string `json:"lyrics"`
	Style  string `json:"style"`
}

// handleGenerateLyrics generates lyrics for a project in a chosen style
func (s *Server) handleGenerateLyrics(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	var req lyricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Style == "" && req.UserStyleID == "" {
		s.writeError(w, http.StatusBadRequest, "style is required")
		return
	}

	styleName := req.Style
	var ref *lyrics.StyleReference
	if req.UserStyleID != "" {
		userStyle, err := s.store.GetUserStyle(r.Context(), req.UserStyleID)
		if errors.Is(err, apperrors.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "User style not found")
			return
		}
		if err != nil {
			s.serverError(w, "load user style", err)
			return
		}
		ref = &lyrics.StyleReference{
			Name:         userStyle.Name,
			Description:  userStyle.Description,
			SampleLyrics: userStyle.SampleLyrics,
		}
		styleName = userStyle.Name
	}

	prompt := lyrics.BuildPrompt(req.Style, req.CustomPrompt, ref)
	text, err := s.lyrics.Generate(r.Context(), prompt)
	if err != nil {
		s.logger.Error("lyrics generation failed", "project", project.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate lyrics: %s", err))
		return
	}

	if err := s.store.UpdateProject(r.Context(), project.ID, store.ProjectUpdate{
		Lyrics: &text,
		Style:  &styleName,
	}); err != nil {
		s.serverError(w, "save lyrics", err)
		return
	}

	s.logger.Info("generated lyrics", "project", project.ID, "style", styleName)
	s.writeJSON(w, http.StatusOK, lyricsResponse{Lyrics: text, Style: styleName})
}

type userStyleCreateRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SampleLyrics string `json:"sample_lyrics"`
}

func (s *Server) handleCreateUserStyle(w http.ResponseWriter, r *http.Request) {
	var req userStyleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	style := store.NewUserStyle(req.Name, req.Description, req.SampleLyrics)
	if err := s.store.CreateUserStyle(r.Context(), style); err != nil {
		s.serverError(w, "create user style", err)
		return
	}
	s.logger.Info("created user style", "name", style.Name)
	s.writeJSON(w, http.StatusOK, style)
}

func (s *Server) handleListUserStyles(w http.ResponseWriter, r *http.Request) {
	styles, err := s.store.ListUserStyles(r.Context())
	if err != nil {
		s.serverError(w, "list user styles", err)
		return
	}
	if styles == nil {
		styles = []store.UserStyle{}
	}
	s.writeJSON(w, http.StatusOK, styles)
}

func (s *Server) handleDeleteUserStyle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.DeleteUserStyle(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "User style not found")
		return
	}
	if err != nil {
		s.serverError(w, "delete user style", err)
		return
	}
	s.logger.Info("deleted user style", "id", id)
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "User style deleted successfully"})
}

// handleDownloadStems zips and serves a project's stems directory
func (s *Server) handleDownloadStems(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if project.StemsDirectory == "" {
		s.preconditionError(w, apperrors.ErrNoStems)
		return
	}

	stemsDir := s.ws.StemsDir(project.ID)
	if _, err := os.Stat(stemsDir); err != nil {
		s.writeError(w, http.StatusNotFound, "Stems directory not found")
		return
	}

	zipPath := s.ws.StemsZip(project.ID)
	if err := zipDirectory(stemsDir, zipPath); err != nil {
		s.serverError(w, "zip stems", err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", project.Name+"_stems.zip"))
	http.ServeFile(w, r, zipPath)
}

// handleDownloadLyrics serves a project's lyrics as a text attachment
func (s *Server) handleDownloadLyrics(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if project.Lyrics == "" {
		s.preconditionError(w, apperrors.ErrNoLyrics)
		return
	}

	style := project.Style
	if style == "" {
		style = "Unknown"
	}
	content := fmt.Sprintf("Lyrics for %s\nStyle: %s\n%s\n\n%s",
		project.Name, style, strings.Repeat("=", 40), project.Lyrics)

	path := s.ws.LyricsFile(project.ID)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		s.serverError(w, "write lyrics file", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", project.Name+"_lyrics.txt"))
	http.ServeFile(w, r, path)
}

// handleExportProject returns the project document with an export timestamp
func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"project":     project,
		"exported_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleServeFile serves an artifact from the uploads directory
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := s.ws.File(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	http.ServeFile(w, r, path)
}

// loadProject resolves the {id} route param to a project, writing the
// error response itself when the project is missing.
func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) (*store.Project, bool) {
	id := chi.URLParam(r, "id")
	project, err := s.store.GetProject(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Project not found")
		return nil, false
	}
	if err != nil {
		s.serverError(w, "load project", err)
		return nil, false
	}
	return project, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError responds with the {"detail": ...} error shape
func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

// preconditionError maps a missing-artifact sentinel to its
// client-facing 400 detail.
func (s *Server) preconditionError(w http.ResponseWriter, err error) {
	detail := err.Error()
	switch {
	case errors.Is(err, apperrors.ErrNoOriginalFile):
		detail = "No original file found. Please upload a file first."
	case errors.Is(err, apperrors.ErrNoLyrics):
		detail = "No lyrics available for this project"
	case errors.Is(err, apperrors.ErrNoStems):
		detail = "No stems available for this project"
	}
	s.writeError(w, http.StatusBadRequest, detail)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error")
}

// zipDirectory zips every regular file in dir into zipPath
func zipDirectory(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read stems dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("open %s: %w", entry.Name(), err)
		}
		dst, err := zw.Create(entry.Name())
		if err != nil {
			f.Close()
			return fmt.Errorf("add %s: %w", entry.Name(), err)
		}
		if _, err := io.Copy(dst, f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", entry.Name(), err)
		}
		f.Close()
	}
	return zw.Close()
}
