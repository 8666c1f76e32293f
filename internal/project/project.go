package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/vividcut/internal/editor"
	"github.com/ivlev/vividcut/internal/metadata"
)

// Version is the project file format written by this build.
const Version = "1.0"

var ErrVersion = errors.New("unsupported project version")

// Project is a saved editing session: the media it edits, the recording
// metadata and the full edit state including history.
type Project struct {
	Version  string             `yaml:"version"`
	ID       string             `yaml:"id"`
	Created  time.Time          `yaml:"created"`
	Saved    time.Time          `yaml:"saved"`
	Source   string             `yaml:"source"`
	Metadata *metadata.Metadata `yaml:"metadata,omitempty"`
	Edit     editor.Snapshot    `yaml:"edit"`
}

// New creates an empty project for the given media path.
func New(source string) *Project {
	now := time.Now()
	return &Project{
		Version: Version,
		ID:      uuid.NewString(),
		Created: now,
		Saved:   now,
		Source:  source,
	}
}

// Capture builds a project from the editor's current state.
func Capture(e *editor.Editor) *Project {
	p := New(e.Path())
	p.Metadata = e.Metadata()
	p.Edit = e.Snapshot()
	return p
}

// Save writes the editor state to path. An existing project keeps its id
// and creation time.
func Save(e *editor.Editor, path string) (*Project, error) {
	p := Capture(e)
	if old, err := Read(path); err == nil {
		p.ID, p.Created = old.ID, old.Created
	}
	if err := Write(p, path); err != nil {
		return nil, err
	}
	return p, nil
}

// Open reads a project, loads its media into the editor and restores the
// edit state. A relative source path is resolved against the project file.
func Open(ctx context.Context, e *editor.Editor, path string) (*Project, error) {
	p, err := Read(path)
	if err != nil {
		return nil, err
	}
	src := p.Source
	if !filepath.IsAbs(src) {
		src = filepath.Join(filepath.Dir(path), src)
	}
	if err := e.Load(ctx, src, p.Metadata); err != nil {
		return nil, err
	}
	if err := e.Restore(p.Edit); err != nil {
		return nil, fmt.Errorf("restore %s: %w", path, err)
	}
	return p, nil
}

// Check validates fields that a hand-edited file may get wrong.
func (p *Project) Check() error {
	if p.Version != Version {
		return fmt.Errorf("%w: %q", ErrVersion, p.Version)
	}
	if p.Source == "" {
		return errors.New("project has no source")
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return fmt.Errorf("project id: %w", err)
	}
	return nil
}
