package handlers

import (
	"model-retrain-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	flowSvc     *services.FlowService
	registrySvc *services.RegistryService
	uploadDir   string
}

// New builds the API handler. uploadDir is the only tree SaveModel may read
// model files from.
func New(
	flowSvc *services.FlowService,
	registrySvc *services.RegistryService,
	uploadDir string,
) *Handler {
	return &Handler{
		flowSvc:     flowSvc,
		registrySvc: registrySvc,
		uploadDir:   uploadDir,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Flow runs
	r.POST("/flows/runs", h.TriggerFlowRun)
	r.GET("/flows/runs", h.ListFlowRuns)
	r.GET("/flows/runs/:id", h.GetFlowRun)

	// Registry
	r.GET("/registry/version", h.GetRegistryVersion)
	r.POST("/registry/models", h.SaveModel)
	r.GET("/registry/models/latest", h.GetLatestModel)
}
