package mlflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	client "github.com/mutablelogic/go-client"
)

const (
	restPath      = "/api/2.0/mlflow"
	artifactsPath = "/api/2.0/mlflow-artifacts/artifacts"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client talks to an MLflow tracking server. JSON endpoints go through
// go-client; artifact bytes are streamed with a plain http.Client.
type Client struct {
	*client.Client
	endpoint string
	http     *http.Client
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a client for the tracking server at trackingURI,
// e.g. "http://mlflow:5000".
func New(trackingURI string, timeout time.Duration, opts ...client.ClientOpt) (*Client, error) {
	endpoint := strings.TrimSuffix(trackingURI, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("tracking uri is empty")
	}
	if timeout > 0 {
		opts = append(opts, client.OptTimeout(timeout))
	}

	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
	if rc, err := client.New(append(opts, client.OptEndpoint(endpoint+restPath))...); err != nil {
		return nil, err
	} else {
		c.Client = rc
	}
	return c, nil
}

///////////////////////////////////////////////////////////////////////////////
// EXPERIMENTS

// GetExperimentByName returns nil when no experiment has that name.
func (c *Client) GetExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	payload, err := client.NewJSONRequest(searchExperimentsRequest{
		Filter:     fmt.Sprintf("name = '%s'", escapeFilter(name)),
		MaxResults: 1,
	})
	if err != nil {
		return nil, err
	}

	var response searchExperimentsResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath("experiments", "search")); err != nil {
		return nil, fmt.Errorf("search experiments: %w", err)
	}
	for i := range response.Experiments {
		if response.Experiments[i].Name == name {
			return &response.Experiments[i], nil
		}
	}
	return nil, nil
}

func (c *Client) CreateExperiment(ctx context.Context, name string) (string, error) {
	payload, err := client.NewJSONRequest(createExperimentRequest{Name: name})
	if err != nil {
		return "", err
	}

	var response createExperimentResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath("experiments", "create")); err != nil {
		return "", fmt.Errorf("create experiment: %w", err)
	}
	return response.ExperimentID, nil
}

// EnsureExperiment returns the id of the named experiment, creating it if needed.
func (c *Client) EnsureExperiment(ctx context.Context, name string) (string, error) {
	exp, err := c.GetExperimentByName(ctx, name)
	if err != nil {
		return "", err
	}
	if exp != nil {
		return exp.ExperimentID, nil
	}
	return c.CreateExperiment(ctx, name)
}

///////////////////////////////////////////////////////////////////////////////
// RUNS

func (c *Client) CreateRun(ctx context.Context, experimentID, name string, start time.Time) (*Run, error) {
	payload, err := client.NewJSONRequest(createRunRequest{
		ExperimentID: experimentID,
		StartTime:    start.UnixMilli(),
		RunName:      name,
	})
	if err != nil {
		return nil, err
	}

	var response createRunResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath("runs", "create")); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &response.Run, nil
}

func (c *Client) LogBatch(ctx context.Context, runID string, params []Param, metrics []Metric) error {
	payload, err := client.NewJSONRequest(logBatchRequest{
		RunID:   runID,
		Params:  params,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}
	if err := c.DoWithContext(ctx, payload, nil, client.OptPath("runs", "log-batch")); err != nil {
		return fmt.Errorf("log batch: %w", err)
	}
	return nil
}

func (c *Client) UpdateRun(ctx context.Context, runID, status string, end time.Time) error {
	payload, err := client.NewJSONRequest(updateRunRequest{
		RunID:   runID,
		Status:  status,
		EndTime: end.UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := c.DoWithContext(ctx, payload, nil, client.OptPath("runs", "update")); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// MODEL REGISTRY

// EnsureRegisteredModel creates the registered model unless it already exists.
func (c *Client) EnsureRegisteredModel(ctx context.Context, name string) error {
	payload, err := client.NewJSONRequest(searchRegisteredModelsRequest{
		Filter:     fmt.Sprintf("name = '%s'", escapeFilter(name)),
		MaxResults: 1,
	})
	if err != nil {
		return err
	}

	var response searchRegisteredModelsResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath("registered-models", "search")); err != nil {
		return fmt.Errorf("search registered models: %w", err)
	}
	for _, m := range response.RegisteredModels {
		if m.Name == name {
			return nil
		}
	}

	payload, err = client.NewJSONRequest(createRegisteredModelRequest{Name: name})
	if err != nil {
		return err
	}
	if err := c.DoWithContext(ctx, payload, nil, client.OptPath("registered-models", "create")); err != nil {
		return fmt.Errorf("create registered model: %w", err)
	}
	return nil
}

func (c *Client) CreateModelVersion(ctx context.Context, name, source, runID string) (*ModelVersion, error) {
	payload, err := client.NewJSONRequest(createModelVersionRequest{
		Name:   name,
		Source: source,
		RunID:  runID,
	})
	if err != nil {
		return nil, err
	}

	var response createModelVersionResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath("model-versions", "create")); err != nil {
		return nil, fmt.Errorf("create model version: %w", err)
	}
	return &response.ModelVersion, nil
}

// GetLatestVersions returns the newest version of name in each requested stage.
func (c *Client) GetLatestVersions(ctx context.Context, name string, stages ...string) ([]ModelVersion, error) {
	query := url.Values{"name": {name}}
	for _, s := range stages {
		query.Add("stages", s)
	}

	var response getLatestVersionsResponse
	if err := c.DoWithContext(ctx, client.NewRequest(), &response,
		client.OptPath("registered-models", "get-latest-versions"),
		client.OptQuery(query),
	); err != nil {
		return nil, fmt.Errorf("get latest versions: %w", err)
	}
	return response.ModelVersions, nil
}

func escapeFilter(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
