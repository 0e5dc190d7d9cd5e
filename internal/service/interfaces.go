// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/model"
)

// RunRecorder persists the outcome of generation runs.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	SaveDecisions(ctx context.Context, runID string, decisions []model.ClassificationDecision) error
	SaveFallbackTypes(ctx context.Context, runID string, fallbacks []model.FallbackType) error
	SaveArtifacts(ctx context.Context, runID string, artifacts []model.Artifact) error
}

// RunReader reads back recorded runs.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	GetDecisions(ctx context.Context, runID string) ([]model.ClassificationDecision, error)
	GetFallbackTypes(ctx context.Context, runID string) ([]model.FallbackType, error)
	GetArtifacts(ctx context.Context, runID string) ([]model.Artifact, error)
}

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
