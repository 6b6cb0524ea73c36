package store

import (
	"time"

	"github.com/google/uuid"
)

// Project is a beat-making project document
type Project struct {
	ID                     string    `bson:"id" json:"id"`
	Name                   string    `bson:"name" json:"name"`
	OriginalFile           string    `bson:"original_file,omitempty" json:"original_file,omitempty"`
	TransformedFile        string    `bson:"transformed_file,omitempty" json:"transformed_file,omitempty"`
	Lyrics                 string    `bson:"lyrics,omitempty" json:"lyrics,omitempty"`
	Style                  string    `bson:"style,omitempty" json:"style,omitempty"`
	StemsDirectory         string    `bson:"stems_directory,omitempty" json:"stems_directory,omitempty"`
	MIDIFiles              []string  `bson:"midi_files,omitempty" json:"midi_files,omitempty"`
	MusicXMLFiles          []string  `bson:"musicxml_files,omitempty" json:"musicxml_files,omitempty"`
	MainMIDI               string    `bson:"main_midi,omitempty" json:"main_midi,omitempty"`
	TransformationType     string    `bson:"transformation_type,omitempty" json:"transformation_type,omitempty"`
	TransformationComplete bool      `bson:"transformation_complete" json:"transformation_complete"`
	CreatedAt              time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt              time.Time `bson:"updated_at" json:"updated_at"`
}

// NewProject creates a project with a fresh id and timestamps
func NewProject(name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProjectUpdate patches a subset of project fields; nil fields are left alone
type ProjectUpdate struct {
	OriginalFile           *string
	TransformedFile        *string
	Lyrics                 *string
	Style                  *string
	StemsDirectory         *string
	MIDIFiles              []string
	MusicXMLFiles          []string
	MainMIDI               *string
	TransformationType     *string
	TransformationComplete *bool
}

// StatusCheck records a client health ping
type StatusCheck struct {
	ID         string    `bson:"id" json:"id"`
	ClientName string    `bson:"client_name" json:"client_name"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

// NewStatusCheck creates a status check for a client
func NewStatusCheck(clientName string) *StatusCheck {
	return &StatusCheck{
		ID:         uuid.NewString(),
		ClientName: clientName,
		Timestamp:  time.Now().UTC(),
	}
}

// UserStyle is a user-defined lyric style profile
type UserStyle struct {
	ID           string    `bson:"id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Description  string    `bson:"description" json:"description"`
	SampleLyrics string    `bson:"sample_lyrics" json:"sample_lyrics"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// NewUserStyle creates a user style with a fresh id
func NewUserStyle(name, description, sampleLyrics string) *UserStyle {
	return &UserStyle{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		SampleLyrics: sampleLyrics,
		CreatedAt:    time.Now().UTC(),
	}
}
