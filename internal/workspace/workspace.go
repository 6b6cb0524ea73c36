package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace manages the uploads directory and per-project artifacts
type Workspace struct {
	Dir string
}

// Open ensures the uploads directory exists and returns a workspace over it
func Open(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path helpers for project files
func (w *Workspace) OriginalFile(projectID, ext string) string {
	return filepath.Join(w.Dir, projectID+"_original"+ext)
}
func (w *Workspace) TransformedFile(projectID string) string {
	return filepath.Join(w.Dir, projectID+"_transformed.wav")
}
func (w *Workspace) StemsDir(projectID string) string {
	return filepath.Join(w.Dir, projectID+"_stems")
}
func (w *Workspace) LyricsFile(projectID string) string {
	return filepath.Join(w.Dir, projectID+"_lyrics.txt")
}
func (w *Workspace) StemsZip(projectID string) string {
	return filepath.Join(w.Dir, projectID+"_stems.zip")
}

// File resolves a filename inside the uploads directory, rejecting
// anything that would escape it.
func (w *Workspace) File(name string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return filepath.Join(w.Dir, name), nil
}

// EnsureStemsDir creates the stems output directory for a project
func (w *Workspace) EnsureStemsDir(projectID string) (string, error) {
	dir := w.StemsDir(projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create stems dir: %w", err)
	}
	return dir, nil
}

// RemoveProject deletes all artifacts belonging to a project
func (w *Workspace) RemoveProject(projectID string) error {
	matches, err := filepath.Glob(filepath.Join(w.Dir, projectID+"_*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			return err
		}
	}
	return nil
}
