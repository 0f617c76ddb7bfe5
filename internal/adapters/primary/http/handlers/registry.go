package handlers

import (
	"net/http"

	"model-retrain-service/internal/adapters/primary/http/dto"
	"model-retrain-service/internal/core/domain"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) GetRegistryVersion(c *gin.Context) {
	stage, err := domain.ParseStage(c.DefaultQuery("stage", string(domain.StageProduction)))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	version, found, err := h.registrySvc.GetVersion(c.Request.Context(), stage)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	resp := dto.VersionResponse{Stage: string(stage)}
	if found {
		resp.Version = &version
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SaveModel(c *gin.Context) {
	var req dto.SaveModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model, params, metrics, err := dto.ToSaveArgs(&req, h.uploadDir)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	ts, err := h.registrySvc.Save(c.Request.Context(), model, params, metrics)
	if err != nil {
		log.WithError(err).Error("save model failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SaveModelResponse{
		Timestamp: ts.String(),
		Target:    h.registrySvc.Target(),
	})
}

func (h *Handler) GetLatestModel(c *gin.Context) {
	model, err := h.registrySvc.Load(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("load model failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToLatestModelResponse(model))
}
