package mlflow

// Request and response bodies of the tracking server REST API (api/2.0/mlflow).

type Experiment struct {
	ExperimentID     string `json:"experiment_id"`
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location,omitempty"`
	LifecycleStage   string `json:"lifecycle_stage,omitempty"`
}

type searchExperimentsRequest struct {
	Filter     string `json:"filter"`
	MaxResults int    `json:"max_results"`
}

type searchExperimentsResponse struct {
	Experiments []Experiment `json:"experiments"`
}

type createExperimentRequest struct {
	Name string `json:"name"`
}

type createExperimentResponse struct {
	ExperimentID string `json:"experiment_id"`
}

type RunInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	Status       string `json:"status"`
	ArtifactURI  string `json:"artifact_uri"`
}

type Run struct {
	Info RunInfo `json:"info"`
}

type createRunRequest struct {
	ExperimentID string `json:"experiment_id"`
	StartTime    int64  `json:"start_time"`
	RunName      string `json:"run_name,omitempty"`
}

type createRunResponse struct {
	Run Run `json:"run"`
}

type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type logBatchRequest struct {
	RunID   string   `json:"run_id"`
	Metrics []Metric `json:"metrics,omitempty"`
	Params  []Param  `json:"params,omitempty"`
}

// Run statuses accepted by runs/update.
const (
	RunFinished = "FINISHED"
	RunFailed   = "FAILED"
)

type updateRunRequest struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	EndTime int64  `json:"end_time"`
}

type RegisteredModel struct {
	Name string `json:"name"`
}

type searchRegisteredModelsRequest struct {
	Filter     string `json:"filter"`
	MaxResults int    `json:"max_results"`
}

type searchRegisteredModelsResponse struct {
	RegisteredModels []RegisteredModel `json:"registered_models"`
}

type createRegisteredModelRequest struct {
	Name string `json:"name"`
}

type ModelVersion struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Source       string `json:"source"`
	RunID        string `json:"run_id,omitempty"`
	CurrentStage string `json:"current_stage,omitempty"`
}

type createModelVersionRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	RunID  string `json:"run_id,omitempty"`
}

type createModelVersionResponse struct {
	ModelVersion ModelVersion `json:"model_version"`
}

type getLatestVersionsResponse struct {
	ModelVersions []ModelVersion `json:"model_versions"`
}

type FileInfo struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

type listArtifactsResponse struct {
	Files []FileInfo `json:"files"`
}
