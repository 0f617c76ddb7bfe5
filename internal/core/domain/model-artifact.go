package domain

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ============================================================================
// Value Objects
// ============================================================================

// Params are hyperparameters, stored apart from the model.
type Params map[string]any

// Metrics are scalar evaluation results such as "mae".
type Metrics map[string]float64

// MetricMAE is the metric key reported by the evaluate and train steps.
const MetricMAE = "mae"

// Get returns the named metric and whether it was present.
func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Stage is the lifecycle label of a tracked model version.
type Stage string

const (
	StageNone       Stage = "None"
	StageProduction Stage = "Production"
	StageStaging    Stage = "Staging"
	StageArchived   Stage = "Archived"
)

// IsValid checks if the stage is one of the known labels
func (s Stage) IsValid() bool {
	switch s {
	case StageNone, StageProduction, StageStaging, StageArchived:
		return true
	}
	return false
}

// ParseStage accepts stage labels case-insensitively.
func ParseStage(s string) (Stage, error) {
	for _, st := range []Stage{StageNone, StageProduction, StageStaging, StageArchived} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// ModelTarget selects the persistence backend.
type ModelTarget string

const (
	TargetLocal  ModelTarget = "local"
	TargetGCS    ModelTarget = "gcs"
	TargetMLflow ModelTarget = "mlflow"
)

var targetAliases = map[string]ModelTarget{
	"local":            TargetLocal,
	"gcs":              TargetGCS,
	"cloud":            TargetGCS,
	"mlflow":           TargetMLflow,
	"tracking-service": TargetMLflow,
}

// ParseModelTarget resolves a configuration value to one of the three backends.
func ParseModelTarget(s string) (ModelTarget, error) {
	t, ok := targetAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModelTarget, s)
	}
	return t, nil
}

// ============================================================================
// Entities
// ============================================================================

// Model is a trained model. Its format is owned by the training code; the
// registry only needs to be able to write it somewhere.
type Model interface {
	Save(path string) error
}

// ArtifactDir is a model already materialised on disk, either a single file
// or a directory tree.
type ArtifactDir struct {
	Path string `json:"path"`
}

// NewArtifactDir checks that path exists before wrapping it.
func NewArtifactDir(path string) (*ArtifactDir, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelPathNotFound, path)
	}
	return &ArtifactDir{Path: path}, nil
}

// Save copies the artifact to path. Directories are copied recursively.
func (a *ArtifactDir) Save(path string) error {
	info, err := os.Stat(a.Path)
	if err != nil {
		return fmt.Errorf("stat model artifact: %w", err)
	}
	if !info.IsDir() {
		return copyFile(a.Path, path, info.Mode())
	}

	return filepath.WalkDir(a.Path, func(src string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(a.Path, src)
		if err != nil {
			return err
		}
		dst := filepath.Join(path, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(src, dst, fi.Mode())
	})
}

func (a *ArtifactDir) String() string {
	return a.Path
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy artifact file: %w", err)
	}
	return out.Close()
}
