package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/interfaces/http/dto"
	"match-intel-api/internal/interfaces/http/middleware"
)

// InsightHandler 片段洞察、比赛情报与重新生成
type InsightHandler struct {
	svc InsightService
}

func NewInsightHandler(svc InsightService) *InsightHandler {
	return &InsightHandler{svc: svc}
}

// GetSegmentInsight 读取片段洞察
// @Summary 片段洞察
// @Tags Insights
// @Produce json
// @Param sid path string true "片段 ID"
// @Param force_refresh query bool false "同步重新生成"
// @Success 200 {object} dto.Response[dto.SegmentInsightResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/segments/{sid}/insight [get]
func (h *InsightHandler) GetSegmentInsight(c *gin.Context) {
	segmentID, ok := dto.BindUUIDParam(c, "sid")
	if !ok {
		return
	}

	view, err := h.svc.GetSegmentInsight(c.Request.Context(), middleware.ActorFromGin(c), segmentID, dto.QueryBool(c, "force_refresh"))
	if err != nil {
		respondError(c, err, "get segment insight")
		return
	}
	dto.Success(c, dto.ToSegmentInsightResponse(view))
}

// GetMatchIntelligence 读取比赛情报
// @Summary 比赛情报
// @Tags Insights
// @Produce json
// @Param mid path string true "比赛 ID"
// @Param force_refresh query bool false "同步重新生成"
// @Success 200 {object} dto.Response[dto.MatchIntelligenceResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/matches/{mid}/intelligence [get]
func (h *InsightHandler) GetMatchIntelligence(c *gin.Context) {
	matchID, ok := dto.BindUUIDParam(c, "mid")
	if !ok {
		return
	}

	view, err := h.svc.GetMatchIntelligence(c.Request.Context(), middleware.ActorFromGin(c), matchID, dto.QueryBool(c, "force_refresh"))
	if err != nil {
		respondError(c, err, "get match intelligence")
		return
	}
	resp, err := dto.ToMatchIntelligenceResponse(view)
	if err != nil {
		respondError(c, err, "decode match intelligence")
		return
	}
	dto.Success(c, resp)
}

// Regenerate 显式重新生成；已是最新时 regenerated=false
// @Summary 重新生成缓存产物
// @Tags Insights
// @Accept json
// @Produce json
// @Param body body dto.ScopeRequest true "作用域"
// @Success 200 {object} dto.Response[dto.RegenerationResponse]
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/regenerations [post]
func (h *InsightHandler) Regenerate(c *gin.Context) {
	scope, scopeID, ok := bindScope(c)
	if !ok {
		return
	}

	res, err := h.svc.Regenerate(c.Request.Context(), middleware.ActorFromGin(c), scope, scopeID)
	if err != nil {
		respondError(c, err, "regenerate")
		return
	}
	dto.Success(c, dto.ToRegenerationResponse(res))
}

// Reconcile 修复单激活行约束（管理员）
// @Summary 修复缓存产物
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body dto.ScopeRequest true "作用域"
// @Success 200 {object} dto.Response[dto.ReconcileResponse]
// @Failure 403 {object} dto.ErrorResponse
// @Router /v1/admin/reconcile [post]
func (h *InsightHandler) Reconcile(c *gin.Context) {
	scope, scopeID, ok := bindScope(c)
	if !ok {
		return
	}

	res, err := h.svc.Reconcile(c.Request.Context(), middleware.ActorFromGin(c), scope, scopeID)
	if err != nil {
		respondError(c, err, "reconcile")
		return
	}
	dto.Success(c, &dto.ReconcileResponse{ScopeType: res.Scope, ScopeID: res.ScopeID, ActiveID: res.ActiveID})
}

func bindScope(c *gin.Context) (entity.ScopeType, string, bool) {
	var req dto.ScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return "", "", false
	}
	scope, err := entity.ParseScopeType(req.ScopeType)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return "", "", false
	}
	if !dto.ValidUUID(req.ScopeID) {
		dto.BadRequest(c, "invalid scope_id: must be a UUID")
		return "", "", false
	}
	return scope, strings.TrimSpace(req.ScopeID), true
}
