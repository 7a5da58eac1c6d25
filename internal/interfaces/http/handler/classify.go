package handler

import (
	"fmt"

	classifyapp "github.com/cclastrib/backend/internal/application/classify"
	"github.com/cclastrib/backend/internal/interfaces/http/dto"
	"github.com/cclastrib/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ClassifyHandler handles fiscal classification API endpoints
type ClassifyHandler struct {
	BaseHandler
	classifyService *classifyapp.Service
	maxBatchItems   int
}

// NewClassifyHandler creates a new ClassifyHandler
func NewClassifyHandler(classifyService *classifyapp.Service, maxBatchItems int) *ClassifyHandler {
	if maxBatchItems <= 0 {
		maxBatchItems = 500
	}
	return &ClassifyHandler{
		classifyService: classifyService,
		maxBatchItems:   maxBatchItems,
	}
}

// Classify godoc
// @Summary      Classify a fiscal operation
// @Description  Resolves cClasTrib, CST and IBS/CBS rates for one operation and builds the NF-e document groups
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        request body classifyapp.ClassifyRequest true "Operation to classify"
// @Success      200 {object} dto.Response{data=classifyapp.ClassifyResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /fiscal/classify [post]
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req classifyapp.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.classifyService.Classify(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ClassifyBatch godoc
// @Summary      Classify a batch of items
// @Description  Classifies every item of a batch sharing the same header fields and returns per-item results plus totals
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        request body classifyapp.BatchRequest true "Batch to classify"
// @Success      200 {object} dto.Response{data=classifyapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /fiscal/classify/batch [post]
func (h *ClassifyHandler) ClassifyBatch(c *gin.Context) {
	var req classifyapp.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if len(req.Itens) > h.maxBatchItems {
		h.ErrorWithCode(c, dto.ErrCodeBatchTooLarge,
			fmt.Sprintf("lote excede o limite de %d itens", h.maxBatchItems))
		return
	}

	result, err := h.classifyService.ClassifyBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
