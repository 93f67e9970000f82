package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	"github.com/ricmunrom/botAtencionClientes/agent/tool"
)

type errorBody struct {
	Error     string              `json:"error"`
	Code      contractx.ErrorCode `json:"code"`
	Detail    map[string]any      `json:"detail,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

type infoRequest struct {
	Query string `json:"query"`
}

type sweepRequest struct {
	MaxAge string `json:"max_age"`
}

type handlers struct {
	biz         contractx.Business
	exec        tool.Executor
	sweepMaxAge time.Duration
}

func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/health", h.health)

	v1 := router.Group("/v1")
	v1.GET("/users", h.listUsers)
	v1.GET("/users/:id", h.getUser)
	v1.DELETE("/users/:id", h.deleteUser)
	v1.POST("/users/:id/search", h.search)
	v1.POST("/users/:id/select", h.selectVehicle)
	v1.POST("/users/:id/financing", h.financing)
	v1.POST("/users/:id/info", h.info)
	v1.POST("/users/:id/reset", h.reset)
	v1.POST("/users/:id/tools", h.runTool)
	v1.POST("/sweep", h.sweep)
	v1.GET("/catalog/stats", h.catalogStats)
	v1.GET("/tools", h.listTools)
	v1.GET("/capabilities", h.capabilities)
}

func (h *handlers) health(c *gin.Context) {
	stats := h.biz.CatalogStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"vehicles":     stats.Total,
		"active_users": len(h.biz.ListActiveUsers(c.Request.Context())),
	})
}

func (h *handlers) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.biz.ListActiveUsers(c.Request.Context())})
}

func (h *handlers) getUser(c *gin.Context) {
	conv, err := h.biz.GetUserState(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"phase": conv.Phase(), "conversation": conv})
}

func (h *handlers) deleteUser(c *gin.Context) {
	if err := h.biz.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) search(c *gin.Context) {
	var criteria search.Criteria
	if !bindOptional(c, &criteria) {
		return
	}
	res, err := h.biz.SearchVehicles(c.Request.Context(), c.Param("id"), criteria)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) selectVehicle(c *gin.Context) {
	var sel contractx.Selection
	if !bindOptional(c, &sel) {
		return
	}
	v, err := h.biz.SelectVehicle(c.Request.Context(), c.Param("id"), sel)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) financing(c *gin.Context) {
	var req contractx.FinancingRequest
	if !bindOptional(c, &req) {
		return
	}
	plans, err := h.biz.GetFinancingOptions(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	rounded := make([]finance.Plan, len(plans))
	for i, p := range plans {
		rounded[i] = p.Rounded()
	}
	c.JSON(http.StatusOK, gin.H{"plans": rounded})
}

func (h *handlers) info(c *gin.Context) {
	var req infoRequest
	if !bindOptional(c, &req) {
		return
	}
	m, err := h.biz.CompanyInfo(c.Request.Context(), c.Param("id"), req.Query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"topic":   m.Section.ID,
		"title":   m.Section.Title,
		"content": m.Section.Content,
		"score":   m.Score,
	})
}

func (h *handlers) reset(c *gin.Context) {
	if err := h.biz.ResetUser(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) runTool(c *gin.Context) {
	var req contractx.ToolRequest
	if !bindOptional(c, &req) {
		return
	}
	res, err := h.exec.Execute(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// listTools serves the OpenAI function definitions, or the eino catalog
// with ?format=eino.
func (h *handlers) listTools(c *gin.Context) {
	if c.Query("format") != "eino" {
		c.JSON(http.StatusOK, gin.H{"tools": tool.OpenAITools()})
		return
	}
	tools, err := tool.Describe()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

func (h *handlers) capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, h.biz.Capabilities(c.Request.Context()))
}

func (h *handlers) sweep(c *gin.Context) {
	var req sweepRequest
	if !bindOptional(c, &req) {
		return
	}
	maxAge := h.sweepMaxAge
	if s := strings.TrimSpace(req.MaxAge); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeError(c, contractx.ErrValidation)
			return
		}
		maxAge = d
	}
	removed := h.biz.SweepInactiveUsers(c.Request.Context(), maxAge)
	c.JSON(http.StatusOK, gin.H{"removed": removed, "max_age": maxAge.String()})
}

func (h *handlers) catalogStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.biz.CatalogStats(c.Request.Context()))
}

// bindOptional decodes a JSON body if one is present. It writes the error
// response and returns false on malformed input.
func bindOptional(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error:     err.Error(),
			Code:      contractx.CodeValidation,
			RequestID: c.GetString(ctxRequestID),
		})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	code, detail := tool.Classify(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, errorBody{
		Error:     err.Error(),
		Code:      code,
		Detail:    detail,
		RequestID: c.GetString(ctxRequestID),
	})
}

func statusFor(code contractx.ErrorCode) int {
	switch code {
	case contractx.CodeValidation:
		return http.StatusBadRequest
	case contractx.CodeVehicleNotFound, contractx.CodeUnknownTool:
		return http.StatusNotFound
	case contractx.CodeNoSearch, contractx.CodeNoSelection, contractx.CodeSelectionMismatch:
		return http.StatusConflict
	case contractx.CodeOutOfRange, contractx.CodeEmptyResults, contractx.CodeInvalidFinancing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
