package ports

import (
	"context"

	"model-retrain-service/internal/core/domain"
)

// StepRunner executes one external workflow step and returns the metrics it reported.
type StepRunner interface {
	Run(ctx context.Context, step domain.Step) (*domain.StepResult, error)
}

// Notifier delivers the end-of-run message.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
