package dto

import (
	"time"

	"github.com/google/uuid"

	"model-retrain-service/internal/core/domain"
)

type FlowRunResponse struct {
	ID                uuid.UUID `json:"id"`
	FlowName          string    `json:"flow_name"`
	Experiment        string    `json:"experiment"`
	Status            string    `json:"status"`
	EvalMAE           *float64  `json:"eval_mae"`
	TrainMAE          *float64  `json:"train_mae"`
	ProductionVersion *int      `json:"production_version"`
	Error             string    `json:"error,omitempty"`
	StartedAt         string    `json:"started_at"`
	FinishedAt        *string   `json:"finished_at"`
	DurationSeconds   *float64  `json:"duration_seconds,omitempty"`
}

type ListFlowRunsResponse struct {
	Items      []FlowRunResponse `json:"items"`
	Total      int               `json:"total"`
	PageSize   int               `json:"page_size"`
	NextOffset int               `json:"next_offset"`
}

func ToFlowRunResponse(run *domain.FlowRun) FlowRunResponse {
	resp := FlowRunResponse{
		ID:                run.ID,
		FlowName:          run.FlowName,
		Experiment:        run.Experiment,
		Status:            string(run.Status),
		EvalMAE:           run.EvalMAE,
		TrainMAE:          run.TrainMAE,
		ProductionVersion: run.ProductionVersion,
		Error:             run.Error,
		StartedAt:         run.StartedAt.Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		finished := run.FinishedAt.Format(time.RFC3339)
		seconds := run.FinishedAt.Sub(run.StartedAt).Seconds()
		resp.FinishedAt = &finished
		resp.DurationSeconds = &seconds
	}
	return resp
}
