package dto

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-retrain-service/internal/core/domain"
)

// ============================================================================
// ToFlowRunResponse Tests
// ============================================================================

func TestToFlowRunResponse_Finished(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	run := domain.NewFlowRun("taxifare", "exp", started)
	eval := 2.345
	run.EvalMAE = &eval
	run.Finish(errors.New("task notify: rejected"), started.Add(90*time.Second))

	resp := ToFlowRunResponse(run)

	assert.Equal(t, run.ID, resp.ID)
	assert.Equal(t, "FAILED", resp.Status)
	assert.Equal(t, "2024-06-01T12:00:00Z", resp.StartedAt)
	require.NotNil(t, resp.FinishedAt)
	assert.Equal(t, "2024-06-01T12:01:30Z", *resp.FinishedAt)
	assert.Equal(t, 90.0, *resp.DurationSeconds)
	assert.Equal(t, 2.345, *resp.EvalMAE)
	assert.Nil(t, resp.TrainMAE)
	assert.Equal(t, "task notify: rejected", resp.Error)
}

func TestToFlowRunResponse_Pending(t *testing.T) {
	resp := ToFlowRunResponse(&domain.FlowRun{ID: uuid.New(), Status: domain.FlowRunPending})
	assert.Nil(t, resp.FinishedAt)
	assert.Nil(t, resp.DurationSeconds)
}

// ============================================================================
// Registry DTO Tests
// ============================================================================

func TestToSaveArgs(t *testing.T) {
	upload := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(upload, "run-7"), 0o755))

	model, params, metrics, err := ToSaveArgs(&SaveModelRequest{
		ModelPath: "run-7",
		Metrics:   map[string]float64{"mae": 1.5},
	}, upload)
	require.NoError(t, err)
	assert.Equal(t, &domain.ArtifactDir{Path: filepath.Join(upload, "run-7")}, model)
	assert.Nil(t, params)
	assert.Equal(t, domain.Metrics{"mae": 1.5}, metrics)

	// absolute paths inside the upload dir are accepted as is
	model, _, _, err = ToSaveArgs(&SaveModelRequest{ModelPath: filepath.Join(upload, "run-7")}, upload)
	require.NoError(t, err)
	assert.Equal(t, &domain.ArtifactDir{Path: filepath.Join(upload, "run-7")}, model)
}

func TestToSaveArgs_MissingPath(t *testing.T) {
	_, _, _, err := ToSaveArgs(&SaveModelRequest{ModelPath: "missing"}, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrModelPathNotFound)
}

func TestToSaveArgs_OutsideUploadDir(t *testing.T) {
	upload := t.TempDir()
	outside := t.TempDir()

	tests := []struct {
		name      string
		modelPath string
		uploadDir string
	}{
		{name: "absolute elsewhere", modelPath: outside, uploadDir: upload},
		{name: "parent traversal", modelPath: "../" + filepath.Base(outside), uploadDir: upload},
		{name: "system file", modelPath: "/etc/passwd", uploadDir: upload},
		{name: "no upload dir", modelPath: "model.bin", uploadDir: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, _, _, err := ToSaveArgs(&SaveModelRequest{ModelPath: tt.modelPath}, tt.uploadDir)
			assert.ErrorIs(t, err, domain.ErrModelPathOutsideUpload)
			assert.Nil(t, model)
		})
	}
}

func TestToSaveArgs_NothingGiven(t *testing.T) {
	model, params, metrics, err := ToSaveArgs(&SaveModelRequest{}, "")
	require.NoError(t, err)
	assert.Nil(t, model)
	assert.Nil(t, params)
	assert.Nil(t, metrics)
}

func TestToLatestModelResponse(t *testing.T) {
	assert.Equal(t, LatestModelResponse{}, ToLatestModelResponse(nil))
	assert.Equal(t, LatestModelResponse{Found: true, Path: "/r/models/1"},
		ToLatestModelResponse(&domain.ArtifactDir{Path: "/r/models/1"}))
}
