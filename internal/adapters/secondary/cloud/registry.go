package cloud

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/adapters/secondary/localfs"
	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

// Registry saves through the local registry, then uploads the model files to
// an object store. Keys are the local paths relative to the registry root,
// e.g. "models/<ts>/a.txt".
type Registry struct {
	local *localfs.Registry
	store ports.ObjectStore
}

var _ ports.ModelRegistry = (*Registry)(nil)

func NewRegistry(local *localfs.Registry, store ports.ObjectStore) *Registry {
	return &Registry{
		local: local,
		store: store,
	}
}

func (r *Registry) Save(ctx context.Context, ts domain.Timestamp, model domain.Model, params domain.Params, metrics domain.Metrics) error {
	if err := r.local.Save(ctx, ts, model, params, metrics); err != nil {
		return err
	}
	if model == nil {
		return nil
	}

	modelPath := r.local.ModelPath(ts)
	files, err := listFiles(modelPath)
	if err != nil {
		return fmt.Errorf("list model files: %w", err)
	}

	for _, file := range files {
		key, err := r.objectKey(file)
		if err != nil {
			return err
		}
		if err := r.store.Upload(ctx, key, file); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		log.WithField("key", key).Debug("model file uploaded")
	}

	log.WithFields(log.Fields{
		"timestamp": ts,
		"files":     len(files),
	}).Info("model uploaded to bucket")
	return nil
}

// Load is not supported for the bucket; callers get no model.
func (r *Registry) Load(ctx context.Context) (domain.Model, error) {
	log.Warn("loading models from the bucket is not supported")
	return nil, nil
}

func (r *Registry) objectKey(file string) (string, error) {
	rel, err := filepath.Rel(r.local.Root(), file)
	if err != nil {
		return "", fmt.Errorf("object key for %s: %w", file, err)
	}
	return filepath.ToSlash(rel), nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
