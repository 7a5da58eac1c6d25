package handler

import (
	"strconv"

	classifyapp "github.com/cclastrib/backend/internal/application/classify"
	"github.com/cclastrib/backend/internal/domain/shared"
	"github.com/cclastrib/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles administrative API endpoints
type AdminHandler struct {
	BaseHandler
	classifyService *classifyapp.Service
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(classifyService *classifyapp.Service) *AdminHandler {
	return &AdminHandler{classifyService: classifyService}
}

// Reload godoc
// @Summary      Reload rule tables
// @Description  Re-reads every CSV table from the data directory and clears the result cache
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=classifyapp.TablesStatus}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/reload [post]
func (h *AdminHandler) Reload(c *gin.Context) {
	status, err := h.classifyService.Reload(c.Request.Context())
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeTablesUnavailable, err.Error())
		return
	}

	h.Success(c, status)
}

// Tables godoc
// @Summary      Show loaded rule tables
// @Description  Returns the data directory, load timestamp and per-table row counts of the current snapshot
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=classifyapp.TablesStatus}
// @Security     BearerAuth
// @Router       /admin/tables [get]
func (h *AdminHandler) Tables(c *gin.Context) {
	h.Success(c, h.classifyService.Tables(c.Request.Context()))
}

// Audit godoc
// @Summary      List classification audit records
// @Description  Returns persisted classification records, newest first, filterable by NCM and emission year
// @Tags         admin
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        ncm query string false "Filter by normalized NCM"
// @Param        ano_emissao query int false "Filter by emission year"
// @Success      200 {object} dto.Response{data=[]fiscal.ClassificationRecord}
// @Failure      501 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/audit [get]
func (h *AdminHandler) Audit(c *gin.Context) {
	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.DefaultFilter()
	filter.Page = listReq.Page
	filter.PageSize = listReq.PageSize
	filter.OrderBy = listReq.OrderBy
	filter.OrderDir = listReq.OrderDir
	if ncm := c.Query("ncm"); ncm != "" {
		filter.Filters["ncm"] = ncm
	}
	if yearStr := c.Query("ano_emissao"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			h.BadRequest(c, "ano_emissao inválido")
			return
		}
		filter.Filters["emission_year"] = year
	}

	page, err := h.classifyService.Audit(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
