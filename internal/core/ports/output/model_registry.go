package ports

import (
	"context"

	"model-retrain-service/internal/core/domain"
)

// ModelRegistry is a persistence backend for models, params and metrics.
// Nil arguments to Save are skipped. Load returns a nil model, not an error,
// when nothing has been saved yet.
type ModelRegistry interface {
	Save(ctx context.Context, ts domain.Timestamp, model domain.Model, params domain.Params, metrics domain.Metrics) error
	Load(ctx context.Context) (domain.Model, error)
}

// VersionedRegistry is implemented by backends that track model versions by stage.
type VersionedRegistry interface {
	ModelRegistry
	GetVersion(ctx context.Context, stage domain.Stage) (int, bool)
}

// ObjectStore uploads local files to a bucket.
type ObjectStore interface {
	Upload(ctx context.Context, key, localPath string) error
}
