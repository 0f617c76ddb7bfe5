package ports

import (
	"context"

	"github.com/google/uuid"

	"model-retrain-service/internal/core/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type FlowRunListFilter struct {
	FlowName string
	Status   string
	Limit    int
	Offset   int
}

// Normalized returns the filter with Limit clamped to (0, MaxPageSize] and a
// non-negative Offset.
func (f FlowRunListFilter) Normalized() FlowRunListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// FlowRunRepository persists the history of workflow runs.
type FlowRunRepository interface {
	Create(ctx context.Context, run *domain.FlowRun) error
	Update(ctx context.Context, run *domain.FlowRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error)
	List(ctx context.Context, filter FlowRunListFilter) ([]*domain.FlowRun, int, error)
}
