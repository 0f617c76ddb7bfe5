package mlflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-retrain-service/internal/core/domain"
)

// fakeTracking is an in-memory tracking server covering the endpoints the
// registry uses.
type fakeTracking struct {
	mu          sync.Mutex
	experiments []Experiment
	runs        map[string]string // run id -> status
	batches     []logBatchRequest
	models      []string
	versions    []ModelVersion
	artifacts   map[string][]byte
	calls       map[string]int
	failPaths   map[string]int
}

func newFakeTracking() *fakeTracking {
	return &fakeTracking{
		runs:      map[string]string{},
		artifacts: map[string][]byte{},
		calls:     map[string]int{},
		failPaths: map[string]int{},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (f *fakeTracking) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := r.URL.Path
	f.calls[p]++
	if status, ok := f.failPaths[p]; ok {
		http.Error(w, "injected failure", status)
		return
	}
	if strings.HasPrefix(p, artifactsPath) {
		f.serveArtifact(w, r)
		return
	}

	switch strings.TrimPrefix(p, restPath+"/") {
	case "experiments/search":
		writeJSON(w, searchExperimentsResponse{Experiments: f.experiments})
	case "experiments/create":
		var req createExperimentRequest
		json.NewDecoder(r.Body).Decode(&req)
		id := strconv.Itoa(len(f.experiments) + 1)
		f.experiments = append(f.experiments, Experiment{ExperimentID: id, Name: req.Name})
		writeJSON(w, createExperimentResponse{ExperimentID: id})
	case "runs/create":
		var req createRunRequest
		json.NewDecoder(r.Body).Decode(&req)
		id := "run" + strconv.Itoa(len(f.runs)+1)
		f.runs[id] = "RUNNING"
		writeJSON(w, createRunResponse{Run: Run{Info: RunInfo{
			RunID:        id,
			ExperimentID: req.ExperimentID,
			Status:       "RUNNING",
			ArtifactURI:  "mlflow-artifacts:/" + req.ExperimentID + "/" + id + "/artifacts",
		}}})
	case "runs/log-batch":
		var req logBatchRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.batches = append(f.batches, req)
		writeJSON(w, struct{}{})
	case "runs/update":
		var req updateRunRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.runs[req.RunID] = req.Status
		writeJSON(w, struct{}{})
	case "registered-models/search":
		var out []RegisteredModel
		for _, m := range f.models {
			out = append(out, RegisteredModel{Name: m})
		}
		writeJSON(w, searchRegisteredModelsResponse{RegisteredModels: out})
	case "registered-models/create":
		var req createRegisteredModelRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.models = append(f.models, req.Name)
		writeJSON(w, struct{}{})
	case "model-versions/create":
		var req createModelVersionRequest
		json.NewDecoder(r.Body).Decode(&req)
		mv := ModelVersion{
			Name:         req.Name,
			Version:      strconv.Itoa(len(f.versions) + 1),
			Source:       req.Source,
			RunID:        req.RunID,
			CurrentStage: string(domain.StageNone),
		}
		f.versions = append(f.versions, mv)
		writeJSON(w, createModelVersionResponse{ModelVersion: mv})
	case "registered-models/get-latest-versions":
		name := r.URL.Query().Get("name")
		stages := r.URL.Query()["stages"]
		var out []ModelVersion
		for _, mv := range f.versions {
			if mv.Name != name {
				continue
			}
			for _, s := range stages {
				if s == mv.CurrentStage {
					out = append(out, mv)
				}
			}
		}
		writeJSON(w, getLatestVersionsResponse{ModelVersions: out})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTracking) serveArtifact(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, artifactsPath), "/")
	switch {
	case r.Method == http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.artifacts[rel] = b
		writeJSON(w, struct{}{})
	case rel == "":
		dir := r.URL.Query().Get("path")
		seen := map[string]bool{}
		var files []FileInfo
		for key := range f.artifacts {
			if !strings.HasPrefix(key, dir+"/") {
				continue
			}
			rest := strings.TrimPrefix(key, dir+"/")
			first, _, nested := strings.Cut(rest, "/")
			if seen[first] {
				continue
			}
			seen[first] = true
			files = append(files, FileInfo{Path: first, IsDir: nested})
		}
		writeJSON(w, listArtifactsResponse{Files: files})
	default:
		b, ok := f.artifacts[rel]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(b)
	}
}

func (f *fakeTracking) promote(version string, stage domain.Stage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.versions {
		if f.versions[i].Version == version {
			f.versions[i].CurrentStage = string(stage)
		}
	}
}

func (f *fakeTracking) runStatus(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[id]
}

func (f *fakeTracking) artifact(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artifacts[key]
}

func (f *fakeTracking) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeTracking) snapshot() ([]logBatchRequest, []ModelVersion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logBatchRequest(nil), f.batches...), append([]ModelVersion(nil), f.versions...)
}

func newTestRegistry(t *testing.T, fake *fakeTracking) (*Registry, string) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)
	root := t.TempDir()
	return NewRegistry(c, "taxifare-exp", "taxifare", root), root
}

func nestedModel(t *testing.T) *domain.ArtifactDir {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "variables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "variables", "b.txt"), []byte("beta"), 0o644))
	return &domain.ArtifactDir{Path: dir}
}

func TestRegistry_SaveThenLoadProduction(t *testing.T) {
	fake := newFakeTracking()
	reg, root := newTestRegistry(t, fake)
	ctx := context.Background()

	err := reg.Save(ctx, "20240601-120000.000000", nestedModel(t),
		domain.Params{"epochs": 5, "learning_rate": 0.01},
		domain.Metrics{"mae": 1.5})
	require.NoError(t, err)

	assert.Equal(t, RunFinished, fake.runStatus("run1"))
	batches, versions := fake.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []Param{{Key: "epochs", Value: "5"}, {Key: "learning_rate", Value: "0.01"}}, batches[0].Params)
	require.Len(t, batches[0].Metrics, 1)
	assert.Equal(t, 1.5, batches[0].Metrics[0].Value)

	assert.Equal(t, []byte("alpha"), fake.artifact("1/run1/artifacts/model/a.txt"))
	assert.Equal(t, []byte("beta"), fake.artifact("1/run1/artifacts/model/variables/b.txt"))
	require.Len(t, versions, 1)
	assert.Equal(t, "mlflow-artifacts:/1/run1/artifacts/model", versions[0].Source)

	// a fresh version is not in Production until promoted
	model, err := reg.Load(ctx)
	assert.NoError(t, err)
	assert.Nil(t, model)

	fake.promote("1", domain.StageProduction)
	model, err = reg.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, model)

	dir := model.(*domain.ArtifactDir).Path
	assert.Equal(t, filepath.Join(root, "mlflow", "taxifare", "1"), dir)
	b, err := os.ReadFile(filepath.Join(dir, "variables", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(b))
}

func TestRegistry_SaveReusesExperimentAndModel(t *testing.T) {
	fake := newFakeTracking()
	reg, _ := newTestRegistry(t, fake)
	ctx := context.Background()

	require.NoError(t, reg.Save(ctx, "20240601-120000.000000", nestedModel(t), nil, nil))
	require.NoError(t, reg.Save(ctx, "20240601-120001.000000", nestedModel(t), nil, nil))

	assert.Equal(t, 1, fake.callCount(restPath+"/experiments/create"))
	assert.Equal(t, 1, fake.callCount(restPath+"/registered-models/create"))
	batches, versions := fake.snapshot()
	assert.Len(t, versions, 2)
	assert.Empty(t, batches)
}

func TestRegistry_SaveMarksRunFailed(t *testing.T) {
	fake := newFakeTracking()
	fake.failPaths[artifactsPath+"/1/run1/artifacts/model/a.txt"] = http.StatusInternalServerError
	reg, _ := newTestRegistry(t, fake)

	err := reg.Save(context.Background(), "20240601-120000.000000", nestedModel(t), nil, domain.Metrics{"mae": 2})
	assert.Error(t, err)
	assert.Equal(t, RunFailed, fake.runStatus("run1"))
	_, versions := fake.snapshot()
	assert.Empty(t, versions)
}

func TestRegistry_GetVersion(t *testing.T) {
	fake := newFakeTracking()
	reg, _ := newTestRegistry(t, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Save(ctx, domain.Timestamp("20240601-12000"+strconv.Itoa(i)+".000000"), nestedModel(t), nil, nil))
	}
	fake.promote("2", domain.StageProduction)
	fake.promote("3", domain.StageStaging)

	v, ok := reg.GetVersion(ctx, domain.StageProduction)
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = reg.GetVersion(ctx, domain.StageStaging)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = reg.GetVersion(ctx, domain.StageArchived)
	assert.False(t, ok)
}

func TestRegistry_ServerErrorsReadAsNoModel(t *testing.T) {
	fake := newFakeTracking()
	fake.failPaths[restPath+"/registered-models/get-latest-versions"] = http.StatusServiceUnavailable
	reg, _ := newTestRegistry(t, fake)

	model, err := reg.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, model)

	v, ok := reg.GetVersion(context.Background(), domain.StageProduction)
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestArtifactRoot(t *testing.T) {
	root, err := artifactRoot("mlflow-artifacts:/3/abc/artifacts/model")
	require.NoError(t, err)
	assert.Equal(t, "3/abc/artifacts/model", root)

	root, err = artifactRoot("mlflow-artifacts://tracking:5000/3/abc/artifacts")
	require.NoError(t, err)
	assert.Equal(t, "3/abc/artifacts", root)

	_, err = artifactRoot("s3://bucket/3/abc")
	assert.ErrorIs(t, err, domain.ErrUnsupportedArtifactURI)
}
