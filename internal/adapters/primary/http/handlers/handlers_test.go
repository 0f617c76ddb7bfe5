package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"model-retrain-service/internal/adapters/primary/http/dto"
	"model-retrain-service/internal/core/domain"
	"model-retrain-service/internal/core/ports/output"
	"model-retrain-service/internal/core/services"
	"model-retrain-service/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router   *gin.Engine
	steps    *testutil.MockStepRunner
	notifier *testutil.MockNotifier
	runs     *testutil.MockFlowRunRepo
	local    *testutil.MockModelRegistry
	tracking *testutil.MockVersionedRegistry
	upload   string
}

func newFixture(t *testing.T, target string) *fixture {
	f := &fixture{
		upload:   t.TempDir(),
		steps:    new(testutil.MockStepRunner),
		notifier: new(testutil.MockNotifier),
		runs:     new(testutil.MockFlowRunRepo),
		local:    new(testutil.MockModelRegistry),
		tracking: new(testutil.MockVersionedRegistry),
	}

	registry := services.NewRegistryService(target, domain.NewTimestamper(func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	registry.Register(domain.TargetLocal, f.local)
	registry.Register(domain.TargetMLflow, f.tracking)

	flow := services.NewFlowService(services.FlowConfig{Name: "taxifare", Experiment: "exp"}, f.steps, f.notifier, f.runs, registry)

	f.router = gin.New()
	New(flow, registry, f.upload).RegisterRoutes(f.router.Group("/api/v1/retrain"))
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, "/api/v1/retrain"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// Flow run Tests
// ============================================================================

func TestTriggerFlowRun_AcceptedThenConflict(t *testing.T) {
	f := newFixture(t, "local")
	release := make(chan struct{})
	f.runs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.runs.On("Update", mock.Anything, mock.Anything).Return(nil)
	f.steps.On("Run", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&domain.StepResult{Metrics: domain.Metrics{"mae": 1}}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	w := f.do(http.MethodPost, "/flows/runs", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.FlowRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "taxifare", resp.FlowName)
	assert.NotEqual(t, uuid.Nil, resp.ID)

	w = f.do(http.MethodPost, "/flows/runs", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	assert.Eventually(t, func() bool {
		return f.do(http.MethodPost, "/flows/runs", nil).Code == http.StatusAccepted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGetFlowRun(t *testing.T) {
	f := newFixture(t, "local")
	id := uuid.New()
	eval := 2.5
	f.runs.On("GetByID", mock.Anything, id).Return(&domain.FlowRun{ID: id, Status: domain.FlowRunSucceeded, EvalMAE: &eval}, nil)

	w := f.do(http.MethodGet, "/flows/runs/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.FlowRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, 2.5, *resp.EvalMAE)
}

func TestGetFlowRun_Errors(t *testing.T) {
	f := newFixture(t, "local")
	missing := uuid.New()
	f.runs.On("GetByID", mock.Anything, missing).Return(nil, domain.ErrFlowRunNotFound)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/flows/runs/"+missing.String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/flows/runs/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/flows/runs/"+uuid.Nil.String(), nil).Code)
}

func TestListFlowRuns(t *testing.T) {
	f := newFixture(t, "local")
	runs := []*domain.FlowRun{{ID: uuid.New()}, {ID: uuid.New()}}
	f.runs.On("List", mock.Anything, ports.FlowRunListFilter{Status: "FAILED", Limit: 2, Offset: 4}).Return(runs, 9, nil)

	w := f.do(http.MethodGet, "/flows/runs?status=FAILED&limit=2&offset=4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListFlowRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 9, resp.Total)
	assert.Equal(t, 2, resp.PageSize)
	assert.Equal(t, 6, resp.NextOffset)
}

func TestListFlowRuns_ReportsEffectivePageSize(t *testing.T) {
	tests := []struct {
		query string
		limit int
	}{
		{query: "", limit: 20},
		{query: "?limit=0", limit: 20},
		{query: "?limit=1000", limit: 100},
		{query: "?limit=abc&offset=-5", limit: 20},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := newFixture(t, "local")
			f.runs.On("List", mock.Anything, ports.FlowRunListFilter{Limit: tt.limit}).Return([]*domain.FlowRun{}, 0, nil)

			w := f.do(http.MethodGet, "/flows/runs"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var resp dto.ListFlowRunsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.limit, resp.PageSize)
			assert.Zero(t, resp.NextOffset)
			f.runs.AssertExpectations(t)
		})
	}
}

func TestListFlowRuns_StoreError(t *testing.T) {
	f := newFixture(t, "local")
	f.runs.On("List", mock.Anything, mock.Anything).Return(nil, 0, errors.New("db down"))

	w := f.do(http.MethodGet, "/flows/runs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestGetRegistryVersion(t *testing.T) {
	f := newFixture(t, "mlflow")
	f.tracking.On("GetVersion", mock.Anything, domain.StageProduction).Return(3, true)
	f.tracking.On("GetVersion", mock.Anything, domain.StageStaging).Return(0, false)

	w := f.do(http.MethodGet, "/registry/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stage":"Production","version":3}`, w.Body.String())

	w = f.do(http.MethodGet, "/registry/version?stage=staging", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stage":"Staging","version":null}`, w.Body.String())

	w = f.do(http.MethodGet, "/registry/version?stage=Canary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRegistryVersion_UnknownTarget(t *testing.T) {
	f := newFixture(t, "ftp")
	w := f.do(http.MethodGet, "/registry/version", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSaveModel(t *testing.T) {
	f := newFixture(t, "local")
	dir := filepath.Join(f.upload, "run-7")
	require.NoError(t, os.Mkdir(dir, 0o755))
	f.local.On("Save", mock.Anything, domain.Timestamp("20240601-120000.000000"),
		&domain.ArtifactDir{Path: dir}, domain.Params(nil), domain.Metrics{"mae": 1.5}).Return(nil)

	w := f.do(http.MethodPost, "/registry/models", map[string]any{
		"model_path": "run-7",
		"metrics":    map[string]float64{"mae": 1.5},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"timestamp":"20240601-120000.000000","target":"local"}`, w.Body.String())
	f.local.AssertExpectations(t)
}

func TestSaveModel_BadRequests(t *testing.T) {
	f := newFixture(t, "local")

	w := f.do(http.MethodPost, "/registry/models", map[string]any{"model_path": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retrain/registry/models", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.local.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveModel_RejectsPathOutsideUploadDir(t *testing.T) {
	f := newFixture(t, "local")
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600))

	for _, p := range []string{filepath.Join(outside, "secret"), "../" + filepath.Base(outside), "/etc/passwd"} {
		w := f.do(http.MethodPost, "/registry/models", map[string]any{"model_path": p})
		assert.Equal(t, http.StatusBadRequest, w.Code, p)
		assert.Contains(t, w.Body.String(), "outside the upload directory", p)
	}

	f.local.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetLatestModel(t *testing.T) {
	f := newFixture(t, "local")
	f.local.On("Load", mock.Anything).Return(&domain.ArtifactDir{Path: "/registry/models/20240601-120000.000000"}, nil).Once()
	f.local.On("Load", mock.Anything).Return(nil, nil).Once()

	w := f.do(http.MethodGet, "/registry/models/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":true,"path":"/registry/models/20240601-120000.000000"}`, w.Body.String())

	w = f.do(http.MethodGet, "/registry/models/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":false}`, w.Body.String())
}
