package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Value Objects
// ============================================================================

// FlowRunStatus represents the state of a flow run
type FlowRunStatus string

const (
	FlowRunPending   FlowRunStatus = "PENDING"
	FlowRunRunning   FlowRunStatus = "RUNNING"
	FlowRunSucceeded FlowRunStatus = "SUCCEEDED"
	FlowRunFailed    FlowRunStatus = "FAILED"
)

// IsValid checks if the status is valid
func (s FlowRunStatus) IsValid() bool {
	switch s {
	case FlowRunPending, FlowRunRunning, FlowRunSucceeded, FlowRunFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the run has finished.
func (s FlowRunStatus) IsTerminal() bool {
	return s == FlowRunSucceeded || s == FlowRunFailed
}

// StepName identifies one of the external workflow steps.
type StepName string

const (
	StepPreprocess StepName = "preprocess"
	StepEvaluate   StepName = "evaluate"
	StepTrain      StepName = "train"
)

// IsValid checks if the step is known
func (s StepName) IsValid() bool {
	return s == StepPreprocess || s == StepEvaluate || s == StepTrain
}

// DataSource is the split a preprocess step works on.
type DataSource string

const (
	SourceTrain DataSource = "train"
	SourceVal   DataSource = "val"
)

// ============================================================================
// Entities
// ============================================================================

// Step is one invocation of the external ML code.
type Step struct {
	Name       StepName   `json:"name"`
	Source     DataSource `json:"source,omitempty"`
	Experiment string     `json:"experiment,omitempty"`
}

// Args renders the step as command line arguments.
func (s Step) Args() []string {
	args := []string{string(s.Name)}
	if s.Source != "" {
		args = append(args, "--source", string(s.Source))
	}
	return args
}

func (s Step) String() string {
	if s.Source != "" {
		return fmt.Sprintf("%s(%s)", s.Name, s.Source)
	}
	return string(s.Name)
}

// StepResult holds whatever metrics the step printed.
type StepResult struct {
	Metrics Metrics `json:"metrics"`
}

// MAE returns the mean absolute error reported by the step.
func (r StepResult) MAE() (float64, error) {
	v, ok := r.Metrics.Get(MetricMAE)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingMetric, MetricMAE)
	}
	return v, nil
}

// FlowRun records one execution of the retraining workflow.
type FlowRun struct {
	ID                uuid.UUID     `json:"id"`
	FlowName          string        `json:"flow_name"`
	Experiment        string        `json:"experiment"`
	Status            FlowRunStatus `json:"status"`
	EvalMAE           *float64      `json:"eval_mae,omitempty"`
	TrainMAE          *float64      `json:"train_mae,omitempty"`
	ProductionVersion *int          `json:"production_version,omitempty"`
	Error             string        `json:"error,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
}

// NewFlowRun creates a pending run.
func NewFlowRun(flowName, experiment string, now time.Time) *FlowRun {
	return &FlowRun{
		ID:         uuid.New(),
		FlowName:   flowName,
		Experiment: experiment,
		Status:     FlowRunPending,
		StartedAt:  now,
	}
}

// Finish moves the run into a terminal state.
func (r *FlowRun) Finish(err error, now time.Time) {
	r.FinishedAt = &now
	if err != nil {
		r.Status = FlowRunFailed
		r.Error = err.Error()
		return
	}
	r.Status = FlowRunSucceeded
	r.Error = ""
}

// Notification is a chat message.
type Notification struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// NewMAEReport formats the message sent at the end of a run.
func NewMAEReport(evalMAE, trainMAE float64) string {
	return fmt.Sprintf("Evaluation MAE: %.2f - New training MAE: %.2f", evalMAE, trainMAE)
}
