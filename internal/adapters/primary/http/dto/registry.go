package dto

import (
	"fmt"
	"path/filepath"
	"strings"

	"model-retrain-service/internal/core/domain"
)

type SaveModelRequest struct {
	ModelPath string             `json:"model_path"`
	Params    map[string]any     `json:"params"`
	Metrics   map[string]float64 `json:"metrics"`
}

type SaveModelResponse struct {
	Timestamp string `json:"timestamp"`
	Target    string `json:"target"`
}

type VersionResponse struct {
	Stage   string `json:"stage"`
	Version *int   `json:"version"`
}

type LatestModelResponse struct {
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// ToSaveArgs converts the request into registry arguments. Absent sections
// stay nil so the backend skips them. model_path is resolved against
// uploadDir and must not leave it.
func ToSaveArgs(req *SaveModelRequest, uploadDir string) (domain.Model, domain.Params, domain.Metrics, error) {
	var model domain.Model
	if req.ModelPath != "" {
		path, err := resolveUploadPath(uploadDir, req.ModelPath)
		if err != nil {
			return nil, nil, nil, err
		}
		dir, err := domain.NewArtifactDir(path)
		if err != nil {
			return nil, nil, nil, err
		}
		model = dir
	}

	var params domain.Params
	if req.Params != nil {
		params = domain.Params(req.Params)
	}
	var metrics domain.Metrics
	if req.Metrics != nil {
		metrics = domain.Metrics(req.Metrics)
	}
	return model, params, metrics, nil
}

func resolveUploadPath(uploadDir, p string) (string, error) {
	if uploadDir == "" {
		return "", fmt.Errorf("%w: no upload directory configured", domain.ErrModelPathOutsideUpload)
	}
	base, err := filepath.Abs(uploadDir)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}

	full := filepath.Clean(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, full)
	}
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrModelPathOutsideUpload, p)
	}
	return full, nil
}

func ToLatestModelResponse(model domain.Model) LatestModelResponse {
	switch m := model.(type) {
	case nil:
		return LatestModelResponse{}
	case *domain.ArtifactDir:
		return LatestModelResponse{Found: true, Path: m.Path}
	default:
		return LatestModelResponse{Found: true}
	}
}
