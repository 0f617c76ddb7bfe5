package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

const (
	paramsDir  = "params"
	metricsDir = "metrics"
	modelsDir  = "models"
	blobExt    = ".yaml"
)

// Registry stores artifacts under a root directory:
//
//	<root>/params/<ts>.yaml
//	<root>/metrics/<ts>.yaml
//	<root>/models/<ts>/...
type Registry struct {
	root string
}

var _ ports.ModelRegistry = (*Registry)(nil)

func NewRegistry(root string) *Registry {
	return &Registry{root: filepath.Clean(root)}
}

// Root returns the registry root directory.
func (r *Registry) Root() string {
	return r.root
}

// ModelPath is where the model saved at ts lives.
func (r *Registry) ModelPath(ts domain.Timestamp) string {
	return filepath.Join(r.root, modelsDir, string(ts))
}

func (r *Registry) blobPath(dir string, ts domain.Timestamp) string {
	return filepath.Join(r.root, dir, string(ts)+blobExt)
}

func (r *Registry) Save(ctx context.Context, ts domain.Timestamp, model domain.Model, params domain.Params, metrics domain.Metrics) error {
	if params != nil {
		path := r.blobPath(paramsDir, ts)
		if err := writeBlob(path, params); err != nil {
			return fmt.Errorf("save params: %w", err)
		}
		log.WithField("path", path).Debug("params saved locally")
	}

	if metrics != nil {
		path := r.blobPath(metricsDir, ts)
		if err := writeBlob(path, metrics); err != nil {
			return fmt.Errorf("save metrics: %w", err)
		}
		log.WithField("path", path).Debug("metrics saved locally")
	}

	if model != nil {
		path := r.ModelPath(ts)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create models dir: %w", err)
		}
		if err := model.Save(path); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		log.WithField("path", path).Debug("model saved locally")
	}

	return nil
}

// Load returns the model with the greatest timestamp, or nil if there is none.
func (r *Registry) Load(ctx context.Context) (domain.Model, error) {
	ts, err := r.latest(modelsDir)
	if err != nil {
		return nil, err
	}
	if ts == "" {
		return nil, nil
	}
	return &domain.ArtifactDir{Path: r.ModelPath(ts)}, nil
}

// LoadParams reads back the params saved at ts.
func (r *Registry) LoadParams(ts domain.Timestamp) (domain.Params, error) {
	var params domain.Params
	if err := readBlob(r.blobPath(paramsDir, ts), &params); err != nil {
		return nil, fmt.Errorf("load params: %w", err)
	}
	return params, nil
}

// LoadMetrics reads back the metrics saved at ts.
func (r *Registry) LoadMetrics(ts domain.Timestamp) (domain.Metrics, error) {
	var metrics domain.Metrics
	if err := readBlob(r.blobPath(metricsDir, ts), &metrics); err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	return metrics, nil
}

func (r *Registry) latest(dir string) (domain.Timestamp, error) {
	entries, err := os.ReadDir(filepath.Join(r.root, dir))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return domain.Timestamp(names[len(names)-1]), nil
}

func writeBlob(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readBlob(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, v)
}
