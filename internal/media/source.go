package media

import (
	"context"
	"fmt"
	"strings"
	"tunedetect/pkg/logger"
	"tunedetect/pkg/model"

	"go.uber.org/zap"
)

const noDescription = "No description available"

// Source fetches one kind of input into dir, the request's private namespace
type Source interface {
	Fetch(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error)

func (f SourceFunc) Fetch(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error) {
	return f(ctx, in, dir)
}

// Acquirer dispatches an input to the source registered for its kind
type Acquirer struct {
	sources map[model.InputKind]Source
}

func NewAcquirer() *Acquirer {
	return &Acquirer{sources: make(map[model.InputKind]Source)}
}

// Register binds a source to one or more input kinds, replacing any previous binding
func (a *Acquirer) Register(src Source, kinds ...model.InputKind) *Acquirer {
	for _, kind := range kinds {
		a.sources[kind] = src
	}
	return a
}

// Acquire returns a local artifact for in. Kinds without a source fail with model.ErrInput.
func (a *Acquirer) Acquire(ctx context.Context, in model.Input, dir string) (*model.MediaArtifact, error) {
	src, ok := a.sources[in.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrInput, in.Kind)
	}

	artifact, err := src.Fetch(ctx, in, dir)
	if err != nil {
		logger.Warn("Media acquisition failed",
			zap.String("kind", string(in.Kind)),
			zap.Error(err))
		return nil, err
	}

	logger.Debug("Media acquired",
		zap.String("kind", string(in.Kind)),
		zap.String("path", artifact.LocalPath),
		zap.String("artifact", string(artifact.Kind)))

	return artifact, nil
}

// FirstLine returns the first non-empty line of a description
func FirstLine(description string) string {
	for _, line := range strings.Split(description, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return noDescription
}
