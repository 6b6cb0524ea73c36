// Package store persists projects, status checks and user styles in MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/bcatacb/LyricsBeats/internal/errors"
)

// listLimit caps list queries
const listLimit = 100

// Mongo is the MongoDB-backed store
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB and verifies the connection
func Connect(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Mongo) projects() *mongo.Collection     { return s.db.Collection("projects") }
func (s *Mongo) statusChecks() *mongo.Collection { return s.db.Collection("status_checks") }
func (s *Mongo) userStyles() *mongo.Collection   { return s.db.Collection("user_styles") }

// CreateProject inserts a project document
func (s *Mongo) CreateProject(ctx context.Context, p *Project) error {
	if _, err := s.projects().InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// ListProjects returns up to 100 projects
func (s *Mongo) ListProjects(ctx context.Context) ([]Project, error) {
	cur, err := s.projects().Find(ctx, bson.M{}, options.Find().SetLimit(listLimit))
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	var projects []Project
	if err := cur.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return projects, nil
}

// GetProject fetches one project by id
func (s *Mongo) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.projects().FindOne(ctx, bson.M{"id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &p, nil
}

// UpdateProject patches project fields and bumps updated_at
func (s *Mongo) UpdateProject(ctx context.Context, id string, update ProjectUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}

	if update.OriginalFile != nil {
		set["original_file"] = *update.OriginalFile
	}
	if update.TransformedFile != nil {
		set["transformed_file"] = *update.TransformedFile
	}
	if update.Lyrics != nil {
		set["lyrics"] = *update.Lyrics
	}
	if update.Style != nil {
		set["style"] = *update.Style
	}
	if update.StemsDirectory != nil {
		set["stems_directory"] = *update.StemsDirectory
	}
	if update.MIDIFiles != nil {
		set["midi_files"] = update.MIDIFiles
	}
	if update.MusicXMLFiles != nil {
		set["musicxml_files"] = update.MusicXMLFiles
	}
	if update.MainMIDI != nil {
		set["main_midi"] = *update.MainMIDI
	}
	if update.TransformationType != nil {
		set["transformation_type"] = *update.TransformationType
	}
	if update.TransformationComplete != nil {
		set["transformation_complete"] = *update.TransformationComplete
	}

	res, err := s.projects().UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CreateStatusCheck inserts a status check
func (s *Mongo) CreateStatusCheck(ctx context.Context, check *StatusCheck) error {
	if _, err := s.statusChecks().InsertOne(ctx, check); err != nil {
		return fmt.Errorf("insert status check: %w", err)
	}
	return nil
}

// ListStatusChecks returns up to 100 status checks
func (s *Mongo) ListStatusChecks(ctx context.Context) ([]StatusCheck, error) {
	cur, err := s.statusChecks().Find(ctx, bson.M{}, options.Find().SetLimit(listLimit))
	if err != nil {
		return nil, fmt.Errorf("find status checks: %w", err)
	}
	var checks []StatusCheck
	if err := cur.All(ctx, &checks); err != nil {
		return nil, fmt.Errorf("decode status checks: %w", err)
	}
	return checks, nil
}

// CreateUserStyle inserts a user style
func (s *Mongo) CreateUserStyle(ctx context.Context, style *UserStyle) error {
	if _, err := s.userStyles().InsertOne(ctx, style); err != nil {
		return fmt.Errorf("insert user style: %w", err)
	}
	return nil
}

// ListUserStyles returns up to 100 user styles
func (s *Mongo) ListUserStyles(ctx context.Context) ([]UserStyle, error) {
	cur, err := s.userStyles().Find(ctx, bson.M{}, options.Find().SetLimit(listLimit))
	if err != nil {
		return nil, fmt.Errorf("find user styles: %w", err)
	}
	var styles []UserStyle
	if err := cur.All(ctx, &styles); err != nil {
		return nil, fmt.Errorf("decode user styles: %w", err)
	}
	return styles, nil
}

// GetUserStyle fetches one user style by id
func (s *Mongo) GetUserStyle(ctx context.Context, id string) (*UserStyle, error) {
	var style UserStyle
	err := s.userStyles().FindOne(ctx, bson.M{"id": id}).Decode(&style)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user style: %w", err)
	}
	return &style, nil
}

// DeleteUserStyle removes a user style by id
func (s *Mongo) DeleteUserStyle(ctx context.Context, id string) error {
	res, err := s.userStyles().DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete user style: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
