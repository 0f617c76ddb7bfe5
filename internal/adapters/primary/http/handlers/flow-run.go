package handlers

import (
	"net/http"
	"strconv"

	"model-retrain-service/internal/adapters/primary/http/dto"
	"model-retrain-service/internal/core/ports/output"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TriggerFlowRun starts a run in the background and answers 202 with the pending run.
func (h *Handler) TriggerFlowRun(c *gin.Context) {
	run, err := h.flowSvc.Start(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("trigger flow run failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.ToFlowRunResponse(run))
}

func (h *Handler) ListFlowRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	filter := ports.FlowRunListFilter{
		FlowName: c.Query("flow_name"),
		Status:   c.Query("status"),
		Limit:    limit,
		Offset:   offset,
	}.Normalized()

	runs, total, err := h.flowSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list flow runs failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.FlowRunResponse, 0, len(runs))
	for _, r := range runs {
		items = append(items, dto.ToFlowRunResponse(r))
	}

	c.JSON(http.StatusOK, dto.ListFlowRunsResponse{
		Items:      items,
		Total:      total,
		PageSize:   filter.Limit,
		NextOffset: filter.Offset + len(items),
	})
}

func (h *Handler) GetFlowRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flow run id"})
		return
	}

	run, err := h.flowSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToFlowRunResponse(run))
}
