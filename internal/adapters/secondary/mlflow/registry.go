package mlflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

const modelArtifactPath = "model"

// Registry stores runs, params, metrics and model versions on an MLflow
// tracking server. Loaded models are cached under <root>/mlflow/<name>/<version>.
type Registry struct {
	client     *Client
	experiment string
	modelName  string
	root       string
	now        func() time.Time
}

var _ ports.VersionedRegistry = (*Registry)(nil)

func NewRegistry(client *Client, experiment, modelName, root string) *Registry {
	return &Registry{
		client:     client,
		experiment: experiment,
		modelName:  modelName,
		root:       root,
		now:        time.Now,
	}
}

// ModelURI is the tracking server URI of the given stage of the registered model.
func (r *Registry) ModelURI(stage domain.Stage) string {
	return fmt.Sprintf("models:/%s/%s", r.modelName, stage)
}

func (r *Registry) Save(ctx context.Context, ts domain.Timestamp, model domain.Model, params domain.Params, metrics domain.Metrics) (err error) {
	expID, err := r.client.EnsureExperiment(ctx, r.experiment)
	if err != nil {
		return err
	}

	run, err := r.client.CreateRun(ctx, expID, string(ts), r.now())
	if err != nil {
		return err
	}
	runID := run.Info.RunID
	logger := log.WithFields(log.Fields{
		"experiment": r.experiment,
		"run_id":     runID,
	})

	defer func() {
		status := RunFinished
		if err != nil {
			status = RunFailed
		}
		if uerr := r.client.UpdateRun(ctx, runID, status, r.now()); uerr != nil {
			logger.WithError(uerr).Warn("failed to close tracking run")
			if err == nil {
				err = uerr
			}
		}
	}()

	if params != nil || metrics != nil {
		if err := r.client.LogBatch(ctx, runID, toParams(params), toMetrics(metrics, r.now())); err != nil {
			return err
		}
		logger.Debug("params and metrics logged")
	}

	if model == nil {
		return nil
	}

	staging, err := os.MkdirTemp("", "mlflow-model-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	dir := filepath.Join(staging, modelArtifactPath)
	if err := model.Save(dir); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if err := r.client.UploadArtifacts(ctx, run.Info.ArtifactURI, modelArtifactPath, dir); err != nil {
		return err
	}

	if err := r.client.EnsureRegisteredModel(ctx, r.modelName); err != nil {
		return err
	}
	mv, err := r.client.CreateModelVersion(ctx, r.modelName, run.Info.ArtifactURI+"/"+modelArtifactPath, runID)
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"model":   r.modelName,
		"version": mv.Version,
	}).Info("model registered on tracking server")
	return nil
}

// Load fetches the latest Production version. Any failure is logged and
// reported as no model.
func (r *Registry) Load(ctx context.Context) (domain.Model, error) {
	uri := r.ModelURI(domain.StageProduction)
	logger := log.WithField("uri", uri)

	mv, err := r.latest(ctx, domain.StageProduction)
	if err != nil {
		logger.WithError(err).Warn("no model loaded from tracking server")
		return nil, nil
	}
	if mv == nil {
		logger.Info("no production model on tracking server")
		return nil, nil
	}

	dest := filepath.Join(r.root, "mlflow", r.modelName, mv.Version)
	if err := r.client.DownloadArtifacts(ctx, mv.Source, dest); err != nil {
		logger.WithError(err).Warn("no model loaded from tracking server")
		return nil, nil
	}

	logger.WithFields(log.Fields{
		"version": mv.Version,
		"path":    dest,
	}).Info("model loaded from tracking server")
	return &domain.ArtifactDir{Path: dest}, nil
}

// GetVersion returns the latest version number in stage, or false if there is none.
func (r *Registry) GetVersion(ctx context.Context, stage domain.Stage) (int, bool) {
	mv, err := r.latest(ctx, stage)
	if err != nil {
		log.WithError(err).WithField("stage", stage).Warn("version lookup failed")
		return 0, false
	}
	if mv == nil {
		return 0, false
	}
	v, err := strconv.Atoi(mv.Version)
	if err != nil {
		log.WithField("version", mv.Version).Warn("non-numeric model version")
		return 0, false
	}
	return v, true
}

func (r *Registry) latest(ctx context.Context, stage domain.Stage) (*ModelVersion, error) {
	versions, err := r.client.GetLatestVersions(ctx, r.modelName, string(stage))
	if err != nil {
		return nil, err
	}

	var best *ModelVersion
	bestN := -1
	for i := range versions {
		n, err := strconv.Atoi(versions[i].Version)
		if err != nil || n <= bestN {
			continue
		}
		best, bestN = &versions[i], n
	}
	return best, nil
}

func toParams(params domain.Params) []Param {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Param, 0, len(keys))
	for _, k := range keys {
		out = append(out, Param{Key: k, Value: fmt.Sprint(params[k])})
	}
	return out
}

func toMetrics(metrics domain.Metrics, at time.Time) []Metric {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, Metric{Key: k, Value: metrics[k], Timestamp: at.UnixMilli()})
	}
	return out
}
