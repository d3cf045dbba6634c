package viz

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Artifact is one finished figure handed to a Sink.
type Artifact struct {
	// Name is a file-system friendly identifier, e.g.
	// "decision_tree_confusion_matrix".
	Name string
	// Title is the text drawn above the figure.
	Title string
	// Diagnostic names the kind of figure ("confusion_matrix", "tree_plot",
	// "model_comparison", ...).
	Diagnostic string
	// Model is the variant display name, empty for run-level figures.
	Model string
	Plot  *plot.Plot
}

// Sink receives rendered figures. Render blocks until the figure has been
// consumed.
type Sink interface {
	Render(ctx context.Context, a Artifact) error
}

// Default figure size (10x7 in).
const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 7 * vg.Inch
)

// FileSink saves every artifact as <Dir>/<Name>.<Format>.
type FileSink struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
	// Format is any extension gonum/plot can encode ("png", "svg", "pdf").
	Format string

	mu      sync.Mutex
	written []string
}

// NewFileSink creates dir if needed and returns a PNG sink of the default
// size.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", dir)
	}
	return &FileSink{Dir: dir, Width: DefaultWidth, Height: DefaultHeight, Format: "png"}, nil
}

// Render implements Sink.
func (s *FileSink) Render(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Plot == nil {
		return errors.NewValueError("FileSink.Render", "artifact "+a.Name+" has no plot")
	}
	format := s.Format
	if format == "" {
		format = "png"
	}
	path := filepath.Join(s.Dir, a.Name+"."+format)
	if err := a.Plot.Save(s.Width, s.Height, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	s.mu.Lock()
	s.written = append(s.written, path)
	s.mu.Unlock()
	return nil
}

// Written returns the paths saved so far, in order.
func (s *FileSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

// RecordingSink keeps artifacts in memory.
type RecordingSink struct {
	// Draw encodes each plot to PNG and discards the bytes, so drawing
	// failures surface without touching the file system.
	Draw bool

	mu        sync.Mutex
	artifacts []Artifact
}

// NewRecordingSink returns an empty RecordingSink.
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

// Render implements Sink.
func (s *RecordingSink) Render(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Draw && a.Plot != nil {
		w, err := a.Plot.WriterTo(DefaultWidth, DefaultHeight, "png")
		if err != nil {
			return err
		}
		if _, err := w.WriteTo(io.Discard); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.artifacts = append(s.artifacts, a)
	s.mu.Unlock()
	return nil
}

// Artifacts returns the recorded artifacts in render order.
func (s *RecordingSink) Artifacts() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Artifact(nil), s.artifacts...)
}

// Names returns the recorded artifact names in render order.
func (s *RecordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.artifacts))
	for i, a := range s.artifacts {
		names[i] = a.Name
	}
	return names
}

// Find returns the first artifact with the given model and diagnostic.
func (s *RecordingSink) Find(model, diagnostic string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.Model == model && a.Diagnostic == diagnostic {
			return a, true
		}
	}
	return Artifact{}, false
}

// DiscardSink drops every artifact.
type DiscardSink struct{}

// Render implements Sink.
func (DiscardSink) Render(ctx context.Context, _ Artifact) error { return ctx.Err() }

// ArtifactName joins a model name and a diagnostic into a lower-case
// identifier: "K-Nearest Neighbors", "confusion_matrix" ->
// "k_nearest_neighbors_confusion_matrix".
func ArtifactName(model, diagnostic string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return '_'
		}
	}, model)
	if slug == "" {
		return diagnostic
	}
	return slug + "_" + diagnostic
}
